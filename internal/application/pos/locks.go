package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Distributed lock keys
const (
	shiftLockKey   = "pos:shift"
	syncLockKey    = "pos:sync-balances"
	saleLockPrefix = "pos:sale:"
)

const (
	defaultLockTTL = 30 * time.Second
	lockWait       = 5 * time.Second
)

// Errors shared by the POS services
var (
	ErrNoOpenShift      = shared.NewDomainError("NO_OPEN_SHIFT", "No shift is open")
	ErrShiftAlreadyOpen = shared.NewDomainError("SHIFT_ALREADY_OPEN", "A shift is already open")
	ErrShiftClosed      = shared.NewDomainError("SHIFT_CLOSED", "The shift was closed, retry the operation")
)

// obtainLock waits at most lockWait for the named lock. A nil locker
// means a single instance and no locking.
func obtainLock(ctx context.Context, locker shared.Locker, key string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	waitCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	return locker.Obtain(waitCtx, key, ttl)
}

// lockVariants row-locks the variants and indexes them by ID. Missing
// variants fail with VARIANT_NOT_FOUND.
func lockVariants(ctx context.Context, repos appshared.Repositories, ids []uuid.UUID) (map[uuid.UUID]*catalog.Variant, error) {
	variants, err := repos.Variants().FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Variant, len(variants))
	for i := range variants {
		byID[variants[i].ID] = &variants[i]
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, shared.NewDomainError("VARIANT_NOT_FOUND", fmt.Sprintf("Variant %s not found", id))
		}
	}
	return byID, nil
}

// ensureShiftOpen re-reads the shift inside the unit of work under a shared
// row lock. A shift closed in the meantime is not written to, and Close
// blocks on the lock until the caller commits.
func ensureShiftOpen(ctx context.Context, repos appshared.Repositories, shiftID uuid.UUID) error {
	shift, err := repos.Shifts().FindByIDForShare(ctx, shiftID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrShiftClosed
		}
		return err
	}
	if !shift.IsOpen() {
		return ErrShiftClosed
	}
	return nil
}

func operatorIDPtr(op pos.Operator) *uuid.UUID {
	if op.ID == uuid.Nil {
		return nil
	}
	id := op.ID
	return &id
}
