package customer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a customer snapshot stays cached
const DefaultCacheTTL = 300 * time.Second

// CacheKeyByID returns the cache key of a customer snapshot by id
func CacheKeyByID(id string) string {
	return "customer:" + id
}

// CacheKeyByDocument returns the cache key of a customer snapshot by digits-only document
func CacheKeyByDocument(document string) string {
	return "customer:doc:" + document
}

// snapshotCache stores whole customer snapshots under both keys.
// It is advisory: failures are logged and never returned.
type snapshotCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func newSnapshotCache(cache Cache, ttl time.Duration, logger *zap.Logger) *snapshotCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &snapshotCache{cache: cache, ttl: ttl, logger: logger}
}

func (c *snapshotCache) get(ctx context.Context, key string) (*customer.Customer, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, falling through to store", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var snap customer.Customer
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &snap, true
}

func (c *snapshotCache) put(ctx context.Context, keys []string, snap *customer.Customer) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("failed to encode customer snapshot", zap.String("customer_id", snap.ID), zap.Error(err))
		return
	}
	for _, key := range keys {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// storeBoth caches the snapshot under its id and its document
func (c *snapshotCache) storeBoth(ctx context.Context, snap *customer.Customer) {
	c.put(ctx, []string{CacheKeyByID(snap.ID), CacheKeyByDocument(snap.Document)}, snap)
}

// invalidate removes both keys of a customer in one call
func (c *snapshotCache) invalidate(ctx context.Context, id, document string) {
	if c.cache == nil {
		return
	}
	keys := []string{CacheKeyByID(id)}
	if document != "" {
		keys = append(keys, CacheKeyByDocument(document))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
