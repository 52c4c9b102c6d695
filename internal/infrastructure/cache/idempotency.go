package cache

import (
	"context"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyStore keeps processed-key markers in a KeyMarker under the
// "idempotency:" namespace
type IdempotencyStore struct {
	keys KeyMarker
}

// NewIdempotencyStore wraps any KeyMarker
func NewIdempotencyStore(keys KeyMarker) *IdempotencyStore {
	return &IdempotencyStore{keys: keys}
}

// NewInMemoryIdempotencyStore keeps markers in a private in-memory store
func NewInMemoryIdempotencyStore() *IdempotencyStore {
	return NewIdempotencyStore(NewInMemoryStore())
}

// NewRedisIdempotencyStore shares markers between replicas through Redis
func NewRedisIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return NewIdempotencyStore(NewRedisStore(client))
}

// MarkProcessed reports true only for the first caller of a key within ttl
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.keys.SetNX(ctx, idempotencyPrefix+key, []byte{'1'}, ttl)
}

func (s *IdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return s.keys.Exists(ctx, idempotencyPrefix+key)
}

// Forget removes a marker so a failed handler can be retried
func (s *IdempotencyStore) Forget(ctx context.Context, key string) error {
	return s.keys.Delete(ctx, idempotencyPrefix+key)
}

// Close is a no-op; the underlying store is owned by Backends
func (s *IdempotencyStore) Close() error { return nil }

var _ shared.IdempotencyStore = (*IdempotencyStore)(nil)
