package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockRetryInterval = 100 * time.Millisecond

// RedisLocker implements shared.Locker with redislock
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker creates a distributed locker on an existing Redis client
func NewRedisLocker(rdb *redis.Client, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    redislock.New(rdb),
		keyPrefix: "flora:lock:",
		logger:    logger,
	}
}

// Obtain acquires the lock, retrying until ctx is done. Returns
// shared.ErrLockNotObtained when the lock stays held by someone else.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(lockRetryInterval),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, shared.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// release with a fresh context so a cancelled request still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

var _ shared.Locker = (*RedisLocker)(nil)

// InMemoryLocker implements shared.Locker within one process
type InMemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiration
	token map[string]uint64
	seq   uint64
}

// NewInMemoryLocker creates a process-local locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		held:  make(map[string]time.Time),
		token: make(map[string]uint64),
	}
}

// Obtain acquires the lock, polling until ctx is done
func (l *InMemoryLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	for {
		if release, ok := l.tryObtain(key, ttl); ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, shared.ErrLockNotObtained
		case <-time.After(lockRetryInterval / 10):
		}
	}
}

func (l *InMemoryLocker) tryObtain(key string, ttl time.Duration) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return nil, false
	}
	l.seq++
	tok := l.seq
	l.held[key] = now.Add(ttl)
	l.token[key] = tok

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// a lock that expired and was taken over is not ours to release
		if l.token[key] == tok {
			delete(l.held, key)
			delete(l.token, key)
		}
	}, true
}

var _ shared.Locker = (*InMemoryLocker)(nil)
