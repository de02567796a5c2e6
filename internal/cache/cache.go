// Package cache provides a small byte-oriented cache abstraction with
// memory and redis backends.
//
// It backs the shared JWKS document mirror: the in-process key sets are
// authoritative, but raw JWKS JSON is kept here so restarts (and sibling
// replicas, when redis is configured) skip the cold fetch.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client defines the cache operations.
type Client interface {
	// Get returns the value for key, or false when absent/expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "memory" | "redis"
	Redis struct {
		Addr   string
		DB     int
		Prefix string
	}
}

// New builds a client for the configured backend.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("cache: redis backend requires an address")
		}
		return newRedis(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Prefix), nil
	case "memory", "":
		return newMemory(), nil
	default:
		return nil, fmt.Errorf("cache: unknown kind %q", cfg.Kind)
	}
}
