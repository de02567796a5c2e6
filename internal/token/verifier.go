package token

import (
	"context"
	"errors"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/mfigueredo/tokenbridge/internal/jwks"
	"github.com/mfigueredo/tokenbridge/internal/metrics"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// Verifier validates bearer/identity tokens for the closed provider set.
// Safe for concurrent use; the key-set cache is the only shared state.
type Verifier struct {
	keys      *jwks.Cache
	providers map[Kind]Provider
}

// NewVerifier builds a Verifier over the given providers.
func NewVerifier(keys *jwks.Cache, providers ...Provider) *Verifier {
	m := make(map[Kind]Provider, len(providers))
	for _, p := range providers {
		m[p.Kind] = p
	}
	return &Verifier{keys: keys, providers: m}
}

// VerifyBearer verifies a token on the generic bearer path, dispatching on
// the peeked (unverified) issuer and then cryptographically verifying under
// the resolved provider's rules.
func (v *Verifier) VerifyBearer(ctx context.Context, raw string) (*VerifiedClaims, error) {
	kind, err := Resolve(raw)
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, kind, raw)
}

// Verify validates raw under the named provider's rules and returns the
// verified claims.
func (v *Verifier) Verify(ctx context.Context, kind Kind, raw string) (*VerifiedClaims, error) {
	claims, err := v.verify(ctx, kind, raw)
	switch {
	case err == nil:
		metrics.TokenVerifications.WithLabelValues(string(kind), "ok").Inc()
	case errors.Is(err, jwks.ErrUnavailable):
		metrics.TokenVerifications.WithLabelValues(string(kind), "unavailable").Inc()
	default:
		metrics.TokenVerifications.WithLabelValues(string(kind), "invalid").Inc()
	}
	return claims, err
}

// Key lookup retries exactly once after an invalidation: a kid missing from
// a cached set is usually rotation, and the refreshed set resolves it. A kid
// still missing after the refetch is a client problem, not rotation.
func (v *Verifier) verify(ctx context.Context, kind Kind, raw string) (*VerifiedClaims, error) {
	p, ok := v.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, kind)
	}
	if len(p.Audiences) == 0 {
		return nil, fmt.Errorf("%w: %s has no configured audience", ErrUnknownProvider, kind)
	}

	log := logger.From(ctx).With(logger.Component("token"), logger.Provider(string(kind)))

	pk, err := peek(raw)
	if err != nil {
		return nil, err
	}

	set, err := v.keys.Get(ctx, p.JWKSURL)
	if err != nil {
		return nil, err
	}
	key, found := set.Key(pk.kid)
	if !found {
		// Rotation case: a newly published key will only appear in a fresh
		// set. One invalidate-and-refetch, never more.
		v.keys.Invalidate(ctx, p.JWKSURL)
		set, err = v.keys.Get(ctx, p.JWKSURL)
		if err != nil {
			return nil, err
		}
		key, found = set.Key(pk.kid)
	}
	if !found {
		log.Warn("signing key not found", logger.KID(pk.kid))
		return nil, fmt.Errorf("%w: kid %s", ErrInvalidKey, pk.kid)
	}

	keyfunc := func(*jwtv5.Token) (any, error) { return key, nil }

	// The decode library matches a single audience value per attempt, so
	// each configured audience gets its own decode; first success wins and
	// the last failure is what surfaces.
	var (
		claims  jwtv5.MapClaims
		lastErr error
	)
	for _, aud := range p.Audiences {
		opts := []jwtv5.ParserOption{
			jwtv5.WithValidMethods(p.Algorithms),
			jwtv5.WithAudience(aud),
			jwtv5.WithIssuedAt(),
		}
		if !p.ManualIssuerCheck {
			opts = append(opts, jwtv5.WithIssuer(p.Issuers[0]))
		}

		mc := jwtv5.MapClaims{}
		tok, err := jwtv5.NewParser(opts...).ParseWithClaims(raw, mc, keyfunc)
		if err == nil && tok.Valid {
			claims = mc
			break
		}
		lastErr = err
	}
	if claims == nil {
		log.Debug("token rejected", logger.KID(pk.kid), logger.Err(lastErr))
		if errors.Is(lastErr, jwtv5.ErrTokenInvalidAudience) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAudience, lastErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, lastErr)
	}

	if p.ManualIssuerCheck {
		iss, _ := claims.GetIssuer()
		if !acceptedIssuer(p.Issuers, iss) {
			log.Debug("issuer rejected", logger.Issuer(iss))
			return nil, fmt.Errorf("%w: issuer not accepted", ErrInvalid)
		}
	}

	return claimsFrom(claims), nil
}

func acceptedIssuer(accepted []string, iss string) bool {
	for _, a := range accepted {
		if a == iss {
			return true
		}
	}
	return false
}
