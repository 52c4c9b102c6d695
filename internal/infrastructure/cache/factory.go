package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Backends bundles the cache-backed infrastructure. Client is nil when
// Redis is disabled or unreachable and the in-memory variants are used.
type Backends struct {
	Client      *redis.Client
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	Store       Store
}

// NewBackends builds Redis-backed components when Redis is enabled and
// reachable, falling back to in-memory ones otherwise
func NewBackends(cfg config.RedisConfig, logger *zap.Logger) *Backends {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Enabled {
		client, err := NewRedisClient(cfg)
		if err == nil {
			logger.Info("using Redis for caches, locks and idempotency", zap.String("addr", cfg.Addr()))
			store := NewRedisStore(client)
			return &Backends{
				Client:      client,
				Idempotency: NewIdempotencyStore(store),
				Locker:      NewRedisLocker(client, logger),
				Store:       store,
			}
		}
		logger.Warn("Redis unavailable, falling back to in-memory caches and locks. "+
			"Locks and idempotency keys will not be shared between instances.",
			zap.Error(err),
		)
	}

	store := NewInMemoryStore()
	return &Backends{
		Idempotency: NewIdempotencyStore(store),
		Locker:      NewInMemoryLocker(),
		Store:       store,
	}
}

// Ping checks Redis when it is in use
func (b *Backends) Ping(ctx context.Context) error {
	if b.Client == nil {
		return nil
	}
	return b.Client.Ping(ctx).Err()
}

// Close releases the Redis client
func (b *Backends) Close() error {
	_ = b.Idempotency.Close()
	if b.Client != nil {
		return b.Client.Close()
	}
	return nil
}
