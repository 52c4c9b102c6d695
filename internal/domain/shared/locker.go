package shared

import (
	"context"
	"time"
)

// ErrLockNotObtained is returned when a lock is held by someone else
var ErrLockNotObtained = NewDomainError("LOCKED", "Operation is already in progress, retry later")

// Locker serializes critical sections across service instances: stock
// changes per variant, shift opening, scheduled jobs.
type Locker interface {
	// Obtain acquires the named lock for at most ttl. The returned release
	// function must be called once the critical section is done.
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// IdempotencyStore remembers keys that were already processed, for
// Idempotency-Key replays and at-most-once event handling
type IdempotencyStore interface {
	// MarkProcessed reports true when the key was newly marked
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget releases a key after the work it guarded failed
	Forget(ctx context.Context, key string) error
	Close() error
}
