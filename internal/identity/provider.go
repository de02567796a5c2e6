// Package identity bridges externally-verified identities into the
// downstream user pool: lookup-or-create an account, then mint pool-native
// tokens for it.
package identity

import (
	"context"
	"errors"
	"time"
)

// Pool is the narrow interface this service needs from the managed user
// pool. The real implementation lives in identity/cognito; tests use an
// in-memory fake.
type Pool interface {
	// Lookup returns the account for username, or ErrNotFound.
	Lookup(ctx context.Context, username string) (*Account, error)

	// Create registers a new account with the given attributes.
	// Returns ErrExists when the username is already taken.
	Create(ctx context.Context, username string, attrs []Attribute) error

	// SetPermanentPassword replaces the account's credential.
	SetPermanentPassword(ctx context.Context, username, password string) error

	// AdminInitiateAuth exchanges a credential for pool-native tokens via
	// the administrative auth flow.
	AdminInitiateAuth(ctx context.Context, clientID, username, password string) (*TokenBundle, error)
}

// Account is the pool's view of a user.
type Account struct {
	Username    string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Attribute is a pool account attribute.
type Attribute struct {
	Name  string
	Value string
}

// TokenBundle is the pool-native token triple. Opaque here beyond
// pass-through.
type TokenBundle struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExternalIdentity is the normalized view of verified external claims used
// to key account resolution.
type ExternalIdentity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

// Pool-level sentinels.
var (
	ErrNotFound = errors.New("identity: account not found")
	ErrExists   = errors.New("identity: account already exists")
)

// Bridge-level sentinels, one per caller-visible condition.
var (
	ErrEmailRequired      = errors.New("identity: email is required for sign-in")
	ErrProvisioningFailed = errors.New("identity: account provisioning failed")
	ErrMintFailed         = errors.New("identity: token minting failed")
	ErrPoolUnavailable    = errors.New("identity: user pool unavailable")
)
