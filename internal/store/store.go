// Package store defines the local user-profile record store used by the
// non-federated provisioning path (/v1/users/me and friends). Accounts in
// the downstream identity pool are not managed here.
package store

import (
	"context"
	"errors"
	"time"
)

// User is a local profile record, keyed by the verified subject claim.
type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Users is the flat-record store contract.
type Users interface {
	// GetByID returns the user with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns the first user with the given email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create appends a new record. Returns ErrExists when the id is taken.
	Create(ctx context.Context, u User) (*User, error)

	// ListAll returns every record.
	ListAll(ctx context.Context) ([]User, error)
}

var (
	ErrNotFound = errors.New("store: user not found")
	ErrExists   = errors.New("store: user already exists")
)
