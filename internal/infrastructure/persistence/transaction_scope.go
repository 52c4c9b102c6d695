package persistence

import (
	"context"

	appshared "github.com/flora/backend/internal/application/shared"
	"github.com/flora/backend/internal/domain/catalog"
	"github.com/flora/backend/internal/domain/identity"
	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/domain/pos"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appshared.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepositories{tx: tx})
	})
}

// gormRepositories hands out repositories scoped to one transaction.
type gormRepositories struct {
	tx *gorm.DB
}

func (r *gormRepositories) Flowers() catalog.FlowerRepository {
	return NewGormFlowerRepository(r.tx)
}

func (r *gormRepositories) Variants() catalog.VariantRepository {
	return NewGormVariantRepository(r.tx)
}

func (r *gormRepositories) Movements() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.tx)
}

func (r *gormRepositories) Supplies() inventory.SupplyRepository {
	return NewGormSupplyRepository(r.tx)
}

func (r *gormRepositories) Transactions() pos.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

func (r *gormRepositories) Shifts() pos.ShiftRepository {
	return NewGormShiftRepository(r.tx)
}

func (r *gormRepositories) Customers() identity.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

var (
	_ appshared.TransactionScope = (*GormTransactionScope)(nil)
	_ appshared.Repositories     = (*gormRepositories)(nil)
)
