package cache

import (
	"context"
	"fmt"
	"io"

	appcustomer "github.com/crm/backend/internal/application/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a customer snapshot cache the health check can ping
type Store interface {
	appcustomer.Cache
	Ping(ctx context.Context) error
}

// Factory builds Redis-backed caches and idempotency stores, falling back to
// in-memory implementations when Redis is unreachable and fallback is allowed.
// All products of one factory share a single Redis client.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(context.Context, config.RedisConfig) (*redis.Client, error)

	client  *redis.Client
	dialErr error
	dialed  bool
	closers []io.Closer
}

// FactoryOption configures the Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) redisClient(ctx context.Context) (*redis.Client, error) {
	if !f.dialed {
		f.dialed = true
		f.client, f.dialErr = f.dial(ctx, f.redisConfig)
		if f.client != nil {
			f.closers = append(f.closers, f.client)
		}
	}
	return f.client, f.dialErr
}

// CreateCache returns a Redis cache, or an in-memory cache when Redis is down and fallback is allowed
func (f *Factory) CreateCache(ctx context.Context) (Store, error) {
	client, err := f.redisClient(ctx)
	if err == nil {
		f.logger.Info("using Redis customer cache", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisCache(client), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory customer cache. "+
		"Snapshots are not shared between instances.",
		zap.Error(err),
	)
	mem := NewInMemoryCache(0)
	f.closers = append(f.closers, mem)
	return mem, nil
}

// CreateIdempotencyStore returns a Redis store, or an in-memory store when Redis is down and fallback is allowed
func (f *Factory) CreateIdempotencyStore(ctx context.Context) (shared.IdempotencyStore, error) {
	client, err := f.redisClient(ctx)
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"Redeliveries to other instances may be processed twice.",
		zap.Error(err),
	)
	mem := NewInMemoryIdempotencyStore()
	f.closers = append(f.closers, mem)
	return mem, nil
}

// Close releases the shared Redis client and any in-memory sweepers
func (f *Factory) Close() error {
	var firstErr error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
