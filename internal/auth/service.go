// Package auth composes token verification and identity bridging into the
// public exchange and bearer-verification operations.
package auth

import (
	"context"
	"errors"

	"github.com/mfigueredo/tokenbridge/internal/identity"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
	"github.com/mfigueredo/tokenbridge/internal/token"
)

// ErrMissingSubject reports a verified token without a subject claim.
// A caller input problem, not a security failure.
var ErrMissingSubject = errors.New("auth: token missing subject claim")

// Service defines the authentication operations exposed to the HTTP layer.
type Service interface {
	// Exchange trades a verified external identity/ID token for
	// pool-native tokens, provisioning the account on first sign-in.
	Exchange(ctx context.Context, kind token.Kind, rawToken, fallbackEmail, fallbackName string) (*identity.TokenBundle, error)

	// VerifyBearer validates a bearer token on the generic multi-issuer
	// path and returns its verified claims.
	VerifyBearer(ctx context.Context, raw string) (*token.VerifiedClaims, error)
}

// Deps contains dependencies for the auth service.
type Deps struct {
	Verifier *token.Verifier
	Bridge   *identity.Bridge
}

type service struct {
	verifier *token.Verifier
	bridge   *identity.Bridge
}

// NewService creates the auth Service.
func NewService(d Deps) Service {
	return &service{verifier: d.Verifier, bridge: d.Bridge}
}

func (s *service) VerifyBearer(ctx context.Context, raw string) (*token.VerifiedClaims, error) {
	return s.verifier.VerifyBearer(ctx, raw)
}

// Exchange runs verify → resolve-or-create → mint, strictly in that order.
//
// The operation is deliberately not transactional: if minting fails after
// the account was created, the account stays; a retried exchange then takes
// the lookup-first path, which makes retries safe for the caller. No step
// retries automatically.
func (s *service) Exchange(ctx context.Context, kind token.Kind, rawToken, fallbackEmail, fallbackName string) (*identity.TokenBundle, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.exchange"),
		logger.Provider(string(kind)),
	)

	claims, err := s.verifier.Verify(ctx, kind, rawToken)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	// Apple only delivers email/name on the very first authorization, so
	// the client may supply them alongside the token.
	email := fallbackEmail
	if email == "" {
		email = claims.Email
	}
	name := fallbackName
	if name == "" {
		name = claims.Name
	}

	username, err := s.bridge.ResolveOrCreate(ctx, identity.ExternalIdentity{
		Provider:    string(kind),
		Subject:     claims.Subject,
		Email:       email,
		DisplayName: name,
	})
	if err != nil {
		return nil, err
	}

	bundle, err := s.bridge.MintNativeTokens(ctx, username)
	if err != nil {
		return nil, err
	}

	log.Info("exchange completed")
	return bundle, nil
}
