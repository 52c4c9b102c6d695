package inventory

import (
	"fmt"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MovementType classifies a stock ledger entry
type MovementType string

const (
	MovementTypeSale       MovementType = "sale"
	MovementTypeWriteOff   MovementType = "write_off"
	MovementTypeReturn     MovementType = "return"
	MovementTypeSupply     MovementType = "supply"
	MovementTypeAdjustment MovementType = "adjustment"
)

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeSale, MovementTypeWriteOff, MovementTypeReturn, MovementTypeSupply, MovementTypeAdjustment:
		return true
	}
	return false
}

// Source types referenced by movements
const (
	SourceTransaction = "transaction"
	SourceSupply      = "supply"
	SourceFlowerEdit  = "flower_edit"
	SourceSync        = "balance_sync"
)

// StockMovement is an append-only ledger row describing one stock change of a variant
type StockMovement struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey"`
	VariantID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	FlowerID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	Type          MovementType `gorm:"type:varchar(20);not null;index"`
	Quantity      int          `gorm:"not null"`
	BalanceBefore int          `gorm:"not null"`
	BalanceAfter  int          `gorm:"not null"`
	SourceType    string       `gorm:"type:varchar(30);not null;index:idx_movement_source,priority:1"`
	SourceID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_movement_source,priority:2"`
	Reason        string       `gorm:"type:varchar(255)"`
	OperatorID    *uuid.UUID   `gorm:"type:uuid"`
	CreatedAt     time.Time    `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// MovementInput describes a ledger entry before it is recorded
type MovementInput struct {
	VariantID     uuid.UUID
	FlowerID      uuid.UUID
	Type          MovementType
	Quantity      int
	BalanceBefore int
	SourceType    string
	SourceID      uuid.UUID
	Reason        string
	OperatorID    *uuid.UUID
}

// NewStockMovement validates and builds a ledger entry
func NewStockMovement(in MovementInput) (*StockMovement, error) {
	if !in.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", fmt.Sprintf("Unknown movement type %q", in.Type))
	}
	if in.Quantity == 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Movement quantity cannot be zero")
	}
	if in.VariantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VARIANT", "Variant ID is required")
	}
	if err := checkSign(in.Type, in.Quantity); err != nil {
		return nil, err
	}
	after := in.BalanceBefore + in.Quantity
	if after < 0 {
		return nil, shared.NewDomainError("INSUFFICIENT_STOCK", "Movement would make stock negative")
	}
	return &StockMovement{
		ID:            uuid.New(),
		VariantID:     in.VariantID,
		FlowerID:      in.FlowerID,
		Type:          in.Type,
		Quantity:      in.Quantity,
		BalanceBefore: in.BalanceBefore,
		BalanceAfter:  after,
		SourceType:    in.SourceType,
		SourceID:      in.SourceID,
		Reason:        in.Reason,
		OperatorID:    in.OperatorID,
		CreatedAt:     time.Now(),
	}, nil
}

func checkSign(t MovementType, qty int) error {
	switch t {
	case MovementTypeSale, MovementTypeWriteOff:
		if qty > 0 {
			return shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("%s movement must decrease stock", t))
		}
	case MovementTypeReturn, MovementTypeSupply:
		if qty < 0 {
			return shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("%s movement must increase stock", t))
		}
	}
	return nil
}
