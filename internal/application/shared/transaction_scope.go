package shared

import (
	"context"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
)

// TransactionScope runs a unit of work inside one database transaction.
// If fn returns an error the transaction is rolled back, otherwise committed.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories gives access to every repository bound to the current
// transaction. Row locks taken through them are held until Execute returns.
type Repositories interface {
	Flowers() catalog.FlowerRepository
	Variants() catalog.VariantRepository
	Movements() inventory.StockMovementRepository
	Supplies() inventory.SupplyRepository
	Transactions() pos.TransactionRepository
	Shifts() pos.ShiftRepository
	Customers() identity.CustomerRepository
}
