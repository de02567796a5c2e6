package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// BridgeDeps contains dependencies for the Bridge.
type BridgeDeps struct {
	Pool Pool

	// ClientID is the pool app client used for the admin auth flow.
	ClientID string

	// EmailAsUsername selects email as the derived username instead of
	// <provider>_<subject>.
	EmailAsUsername bool

	// Timeout bounds every pool call. Zero means 10s.
	Timeout time.Duration
}

// Bridge resolves external identities to pool accounts and mints native
// tokens for them.
type Bridge struct {
	pool            Pool
	clientID        string
	emailAsUsername bool
	timeout         time.Duration
}

// NewBridge creates a Bridge.
func NewBridge(d BridgeDeps) *Bridge {
	t := d.Timeout
	if t <= 0 {
		t = 10 * time.Second
	}
	return &Bridge{
		pool:            d.Pool,
		clientID:        d.ClientID,
		emailAsUsername: d.EmailAsUsername,
		timeout:         t,
	}
}

// Username derives the deterministic pool username for an external
// identity. Repeated sign-ins for the same identity always land on the
// same account.
func (b *Bridge) Username(id ExternalIdentity) (string, error) {
	if b.emailAsUsername {
		if strings.TrimSpace(id.Email) == "" {
			return "", ErrEmailRequired
		}
		return id.Email, nil
	}
	if id.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrProvisioningFailed)
	}
	return id.Provider + "_" + id.Subject, nil
}

// ResolveOrCreate returns the pool username for an external identity,
// provisioning the account on first sight.
//
// Lookup-first keeps the operation idempotent: a repeat sign-in returns the
// existing account untouched, with no attribute refresh. A create that
// loses a race (ErrExists) also resolves to the existing account.
func (b *Bridge) ResolveOrCreate(ctx context.Context, id ExternalIdentity) (string, error) {
	log := logger.From(ctx).With(
		logger.Component("identity.bridge"),
		logger.Provider(id.Provider),
	)

	username, err := b.Username(id)
	if err != nil {
		return "", err
	}

	opctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if _, err := b.pool.Lookup(opctx, username); err == nil {
		log.Debug("existing account resolved", logger.Username(maskEmail(username)))
		return username, nil
	} else if !errors.Is(err, ErrNotFound) {
		if poolUnreachable(err) {
			return "", fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		return "", fmt.Errorf("%w: lookup: %v", ErrProvisioningFailed, err)
	}

	attrs := []Attribute{}
	if id.Email != "" {
		attrs = append(attrs,
			Attribute{Name: "email", Value: id.Email},
			// The external issuer already verified this address.
			Attribute{Name: "email_verified", Value: "true"},
		)
	}
	if id.DisplayName != "" {
		attrs = append(attrs, Attribute{Name: "name", Value: id.DisplayName})
	}

	cctx, ccancel := context.WithTimeout(ctx, b.timeout)
	defer ccancel()

	if err := b.pool.Create(cctx, username, attrs); err != nil {
		if errors.Is(err, ErrExists) {
			// Lost a creation race; the account is there.
			log.Debug("creation race resolved to existing account")
			return username, nil
		}
		if poolUnreachable(err) {
			return "", fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		log.Error("account creation failed", logger.Err(err))
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	// Seed an initial permanent credential so the account leaves FORCE_CHANGE_PASSWORD state.
	password, err := generatePassword()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	pctx, pcancel := context.WithTimeout(ctx, b.timeout)
	defer pcancel()
	if err := b.pool.SetPermanentPassword(pctx, username, password); err != nil {
		if poolUnreachable(err) {
			return "", fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		return "", fmt.Errorf("%w: set initial credential: %v", ErrProvisioningFailed, err)
	}

	log.Info("account provisioned", logger.Username(maskEmail(username)))
	return username, nil
}

// MintNativeTokens establishes a fresh one-time credential for the account
// and immediately exchanges it for pool-native tokens through the admin
// auth flow. The credential is never reused or returned.
//
// This is a privileged operation and rotates the account's credential as a
// side effect on every call; it is logged accordingly.
func (b *Bridge) MintNativeTokens(ctx context.Context, username string) (*TokenBundle, error) {
	log := logger.From(ctx).With(logger.Component("identity.bridge"), logger.Op("MintNativeTokens"))

	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	sctx, scancel := context.WithTimeout(ctx, b.timeout)
	defer scancel()
	if err := b.pool.SetPermanentPassword(sctx, username, password); err != nil {
		if poolUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		log.Error("credential rotation failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	actx, acancel := context.WithTimeout(ctx, b.timeout)
	defer acancel()
	bundle, err := b.pool.AdminInitiateAuth(actx, b.clientID, username, password)
	if err != nil {
		if poolUnreachable(err) {
			return nil, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
		}
		log.Error("admin auth failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	log.Info("native tokens minted", logger.Username(maskEmail(username)))
	return bundle, nil
}

// poolUnreachable classifies transport-level failures so they surface as
// ServiceUnavailable instead of being conflated with a rejected operation.
func poolUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var uerr *url.Error
	return errors.As(err, &uerr)
}

// maskEmail masks an email-shaped value for logging (first 2 chars + domain).
func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return s
	}
	if at < 2 {
		return "***" + s[at:]
	}
	return s[:2] + "***" + s[at:]
}
