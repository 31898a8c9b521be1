package cache

import (
	"context"
	"time"

	appcustomer "github.com/crm/backend/internal/application/customer"
)

// InMemoryCache is a process-local byte cache.
// It is suitable for single-instance deployments and tests; instances do not share entries.
type InMemoryCache struct {
	entries *expiringMap[[]byte]
}

// NewInMemoryCache creates an in-memory cache that sweeps expired entries every cleanupInterval.
// A non-positive interval uses five minutes.
func NewInMemoryCache(cleanupInterval time.Duration) *InMemoryCache {
	return &InMemoryCache{entries: newExpiringMap[[]byte](cleanupInterval)}
}

// Get returns a copy of the stored bytes
func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries.get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value for ttl
func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.entries.set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes every key in one step
func (c *InMemoryCache) Delete(_ context.Context, keys ...string) error {
	c.entries.delete(keys...)
	return nil
}

// Ping always succeeds
func (c *InMemoryCache) Ping(context.Context) error { return nil }

// Size returns the number of stored entries, including expired ones not yet swept
func (c *InMemoryCache) Size() int {
	return c.entries.size()
}

// Close stops the sweeper; safe to call multiple times
func (c *InMemoryCache) Close() error {
	c.entries.close()
	return nil
}

var _ appcustomer.Cache = (*InMemoryCache)(nil)
