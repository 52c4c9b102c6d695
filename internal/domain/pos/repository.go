package pos

import (
	"context"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	shared.Filter
	Type          TransactionType
	ShiftID       *uuid.UUID
	CustomerID    *uuid.UUID
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
}

// TransactionRepository persists POS transactions with their items
type TransactionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindByIDForUpdate loads and row-locks a transaction. Must run inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)

	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	FindAll(ctx context.Context, filter TransactionFilter) ([]Transaction, int64, error)
	FindByShift(ctx context.Context, shiftID uuid.UUID) ([]Transaction, error)
	FindReturnsOf(ctx context.Context, originalID uuid.UUID) ([]Transaction, error)

	// Create inserts a transaction with its items
	Create(ctx context.Context, t *Transaction) error

	// Save updates the header and item return counters, guarded by version
	Save(ctx context.Context, t *Transaction) error
}

// ShiftRepository persists shifts
type ShiftRepository interface {
	// FindOpen returns the open shift or shared.ErrNotFound
	FindOpen(ctx context.Context) (*Shift, error)
	// FindOpenForUpdate is FindOpen holding an exclusive row lock
	FindOpenForUpdate(ctx context.Context) (*Shift, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Shift, error)
	// FindByIDForShare holds a shared row lock, so the shift cannot be
	// closed until the caller's transaction ends
	FindByIDForShare(ctx context.Context, id uuid.UUID) (*Shift, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Shift, int64, error)
	Save(ctx context.Context, shift *Shift) error
}
