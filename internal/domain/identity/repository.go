package identity

import (
	"context"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerRepository persists customers
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByIDForUpdate loads and row-locks a customer so counter updates
	// from concurrent sales serialize. Must run inside a transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error)

	FindByPhone(ctx context.Context, phone string) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Customer, int64, error)
	Save(ctx context.Context, customer *Customer) error
}

// AdminUserRepository persists admin users
type AdminUserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)
	FindByEmail(ctx context.Context, email string) (*AdminUser, error)
	Save(ctx context.Context, admin *AdminUser) error
}
