package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "crm:idempotency:"

// RedisIdempotencyStore records handled message ids in Redis so redeliveries
// are skipped across every consumer instance
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore creates a store on an existing client. The store does not own the client.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed atomically records id with SET NX and a TTL.
// It returns true when id was not seen before.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed reports whether id was recorded and has not expired
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed message: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
