package cache

import (
	"context"
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore records handled message ids in process memory.
// Redeliveries to another instance are not detected.
type InMemoryIdempotencyStore struct {
	entries *expiringMap[struct{}]
}

// NewInMemoryIdempotencyStore creates a store with a background sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{entries: newExpiringMap[struct{}](defaultCleanupInterval)}
}

// MarkProcessed returns true when id was not seen before or its record expired
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	return s.entries.setIfAbsent(id, struct{}{}, ttl), nil
}

// IsProcessed reports whether id was recorded and has not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, id string) (bool, error) {
	_, ok := s.entries.get(id)
	return ok, nil
}

// Close stops the sweeper; safe to call multiple times
func (s *InMemoryIdempotencyStore) Close() error {
	s.entries.close()
	return nil
}

// Size returns the number of records, including expired ones not yet swept
func (s *InMemoryIdempotencyStore) Size() int {
	return s.entries.size()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
