package jwks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mfigueredo/tokenbridge/internal/cache"
	"github.com/mfigueredo/tokenbridge/internal/metrics"
	"github.com/mfigueredo/tokenbridge/internal/observability/logger"
)

// ErrUnavailable reports that a key-distribution endpoint could not be
// reached or answered with a non-2xx status. It is deliberately distinct
// from "no matching key": a transport failure must never be read as proof
// that a kid does not exist.
var ErrUnavailable = errors.New("jwks: key endpoint unavailable")

const docKeyPrefix = "jwks:doc:"

// Cache caches one KeySet per key-distribution endpoint.
//
// Sets have no TTL; they are replaced only through Invalidate (the verifier
// does this once when a kid lookup misses, which covers ordinary rotation).
// Concurrent cold fetches for the same endpoint are collapsed with
// singleflight, and readers always observe either the old complete set or
// the new complete set, never something in between.
type Cache struct {
	http    *http.Client
	timeout time.Duration

	// backing optionally mirrors raw JWKS JSON in a shared cache so a
	// restart (or a sibling replica on redis) skips the cold fetch.
	backing cache.Client

	mu   sync.RWMutex
	sets map[string]*KeySet
	sf   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Cache) { c.http = h }
}

// WithBacking mirrors raw documents into the given shared cache.
func WithBacking(b cache.Client) Option {
	return func(c *Cache) { c.backing = b }
}

// NewCache builds a Cache whose network fetches are bounded by timeout.
func NewCache(timeout time.Duration, opts ...Option) *Cache {
	c := &Cache{
		timeout: timeout,
		sets:    make(map[string]*KeySet),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: timeout}
	}
	return c
}

// Get returns the cached KeySet for endpoint, fetching it on a cold cache.
// Transport or HTTP failure surfaces as ErrUnavailable.
func (c *Cache) Get(ctx context.Context, endpoint string) (*KeySet, error) {
	c.mu.RLock()
	if ks, ok := c.sets[endpoint]; ok {
		c.mu.RUnlock()
		return ks, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do(endpoint, func() (any, error) {
		// Double-check: another caller may have populated the set while we
		// waited on the flight group.
		c.mu.RLock()
		if ks, ok := c.sets[endpoint]; ok {
			c.mu.RUnlock()
			return ks, nil
		}
		c.mu.RUnlock()

		ks, err := c.load(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sets[endpoint] = ks
		c.mu.Unlock()
		return ks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*KeySet), nil
}

// Invalidate drops the cached set for endpoint, forcing the next Get to
// re-fetch. Also drops the shared document mirror so the re-fetch actually
// hits the issuer.
func (c *Cache) Invalidate(ctx context.Context, endpoint string) {
	c.mu.Lock()
	delete(c.sets, endpoint)
	c.mu.Unlock()

	if c.backing != nil {
		if err := c.backing.Delete(ctx, docKeyPrefix+endpoint); err != nil {
			logger.From(ctx).Debug("jwks backing delete failed",
				logger.Component("jwks"),
				logger.String("endpoint", endpoint),
				logger.Err(err),
			)
		}
	}
}

func (c *Cache) load(ctx context.Context, endpoint string) (*KeySet, error) {
	log := logger.From(ctx).With(logger.Component("jwks"), logger.String("endpoint", endpoint))

	if c.backing != nil {
		if raw, ok := c.backing.Get(ctx, docKeyPrefix+endpoint); ok {
			if ks, err := ParseKeySet(endpoint, raw, time.Now()); err == nil {
				log.Debug("key set loaded from backing cache", logger.Count(ks.Len()))
				return ks, nil
			}
			// Corrupt mirror entry: fall through to a real fetch.
			_ = c.backing.Delete(ctx, docKeyPrefix+endpoint)
		}
	}

	raw, err := c.fetch(ctx, endpoint)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		log.Warn("key set fetch failed", logger.Err(err))
		return nil, err
	}
	metrics.JWKSFetches.WithLabelValues("ok").Inc()

	ks, err := ParseKeySet(endpoint, raw, time.Now())
	if err != nil {
		return nil, err
	}

	if c.backing != nil {
		// No expiry: invalidation is explicit, mirroring the in-process set.
		if err := c.backing.Set(ctx, docKeyPrefix+endpoint, raw, 0); err != nil {
			log.Debug("jwks backing store failed", logger.Err(err))
		}
	}

	log.Debug("key set fetched", logger.Count(ks.Len()))
	return ks, nil
}

func (c *Cache) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, nil
}
