package customer

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/customer"
	"go.uber.org/zap"
)

// Option configures the customer services
type Option func(*options)

type options struct {
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
	metrics  Metrics
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCacheTTL overrides DefaultCacheTTL
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.cacheTTL = ttl
	}
}

// WithMetrics sets the business metrics recorder
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// base holds what every coordinator service shares
type base struct {
	repo    customer.Repository
	cache   *snapshotCache
	logger  *zap.Logger
	now     func() time.Time
	metrics Metrics
}

func newBase(repo customer.Repository, cache Cache, opts []Option) base {
	o := &options{
		logger:   zap.NewNop(),
		cacheTTL: DefaultCacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return base{
		repo:    repo,
		cache:   newSnapshotCache(cache, o.cacheTTL, o.logger),
		logger:  o.logger,
		now:     o.now,
		metrics: o.metrics,
	}
}

// load fetches a customer straight from the store
func (b *base) load(ctx context.Context, id string) (*customer.Customer, error) {
	return b.repo.FindByID(ctx, id)
}
