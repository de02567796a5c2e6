package cache

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// redisClient implements Client on a redis backend.
// A key prefix keeps this service's entries apart from other tenants of the
// same redis instance.
type redisClient struct {
	c      *rdb.Client
	prefix string
}

func newRedis(addr string, db int, prefix string) *redisClient {
	return &redisClient{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

func (r *redisClient) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.c.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.key(key)).Err()
}
