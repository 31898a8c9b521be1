package customer

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/shared/valueobject"
)

// Cache is a string-keyed byte cache with per-entry expiry
type Cache interface {
	// Get returns found=false on a miss
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes every key; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
}

// AddressLookup resolves a digits-only postal code into an address.
// An unknown postal code is reported as a not-found domain error.
type AddressLookup interface {
	Lookup(ctx context.Context, postalCode string) (valueobject.Address, error)
}

// Metrics records business counters; a nil Metrics disables recording
type Metrics interface {
	RecordCustomerCreated(ctx context.Context, person string)
	RecordStageChanged(ctx context.Context, from, to string)
	RecordEnrichment(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordCustomerCreated(context.Context, string)      {}
func (noopMetrics) RecordStageChanged(context.Context, string, string) {}
func (noopMetrics) RecordEnrichment(context.Context, string)           {}
