package inventory

import (
	"context"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementFilter narrows ledger queries
type MovementFilter struct {
	shared.Filter
	VariantID  *uuid.UUID
	FlowerID   *uuid.UUID
	SourceType string
	SourceID   *uuid.UUID
	Type       MovementType
	From       *time.Time
	To         *time.Time
}

// StockMovementRepository persists the stock ledger
type StockMovementRepository interface {
	Create(ctx context.Context, movements ...*StockMovement) error
	FindAll(ctx context.Context, filter MovementFilter) ([]StockMovement, int64, error)
}

// SupplyFilter narrows supply listings
type SupplyFilter struct {
	shared.Filter
	Status SupplyStatus
}

// SupplyRepository persists supplies with their rows
type SupplyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Supply, error)
	FindAll(ctx context.Context, filter SupplyFilter) ([]Supply, int64, error)
	// Save creates or updates a supply; rows are written on create and updated on receive
	Save(ctx context.Context, supply *Supply) error
}
