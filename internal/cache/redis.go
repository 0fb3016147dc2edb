// Package cache wraps the fast key-value snapshot cache sitting in front of
// the blob object store. Grounded on the wider example pack's use of
// redis/go-redis for exactly this kind of job/task snapshot caching.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a minimal KV interface over Redis, scoped to what the job store needs.
type Cache struct {
	client *redis.Client
}

// New connects a Redis client. Returns (nil, nil) when addr is empty so callers
// can treat an unconfigured cache as "disabled" rather than an error.
func New(addr, password string, db int) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Cache{client: client}, nil
}

// Set writes a value with TTL. A nil *Cache is a valid no-op receiver so callers
// don't need to branch on whether the cache is configured.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Get reads a value. Returns (nil, redis.Nil) on miss, mirroring go-redis semantics.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, redis.Nil
	}
	return c.client.Get(ctx, key).Bytes()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Enabled reports whether a real Redis connection is configured.
func (c *Cache) Enabled() bool {
	return c != nil
}

// IsMiss reports whether err represents a cache miss rather than a real failure.
func IsMiss(err error) bool {
	return err == redis.Nil
}
