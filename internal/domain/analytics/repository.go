package analytics

import (
	"context"
	"time"
)

// Repository reads reporting projections
type Repository interface {
	// TransactionFacts lists transactions created in [from, to)
	TransactionFacts(ctx context.Context, from, to time.Time) ([]TransactionFact, error)

	// ItemFacts lists transaction lines created in [from, to)
	ItemFacts(ctx context.Context, from, to time.Time) ([]ItemFact, error)

	// VariantLevels lists the current stock of every variant
	VariantLevels(ctx context.Context) ([]VariantLevel, error)

	// PendingPayments sums sales still waiting for payment
	PendingPayments(ctx context.Context) (PendingPayments, error)
}
