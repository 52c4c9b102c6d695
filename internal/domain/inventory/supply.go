package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplyStatus is the lifecycle state of a supply
type SupplyStatus string

const (
	SupplyStatusPlanned   SupplyStatus = "planned"
	SupplyStatusReceived  SupplyStatus = "received"
	SupplyStatusCancelled SupplyStatus = "cancelled"
)

// Supply is an incoming batch of flowers from a supplier
type Supply struct {
	shared.BaseAggregateRoot
	Number     string       `gorm:"type:varchar(40);not null;uniqueIndex"`
	Supplier   string       `gorm:"type:varchar(200)"`
	Status     SupplyStatus `gorm:"type:varchar(20);not null;default:'planned';index"`
	ExpectedAt *time.Time
	ReceivedAt *time.Time
	ReceivedBy *uuid.UUID  `gorm:"type:uuid"`
	Notes      string      `gorm:"type:text"`
	Rows       []SupplyRow `gorm:"foreignKey:SupplyID"`
}

// TableName returns the table name for GORM
func (Supply) TableName() string {
	return "supplies"
}

// SupplyRow is one flower/length line of a supply
type SupplyRow struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	SupplyID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	FlowerID      *uuid.UUID       `gorm:"type:uuid"`
	VariantID     *uuid.UUID       `gorm:"type:uuid"`
	FlowerName    string           `gorm:"type:varchar(200);not null"`
	Length        int              `gorm:"not null"`
	Quantity      int              `gorm:"not null"`
	PurchasePrice decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	SalePrice     *decimal.Decimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (SupplyRow) TableName() string {
	return "supply_rows"
}

// SupplyRowInput describes a row to add to a supply
type SupplyRowInput struct {
	FlowerID      *uuid.UUID
	FlowerName    string
	Length        int
	Quantity      int
	PurchasePrice decimal.Decimal
	SalePrice     *decimal.Decimal
}

// NewSupply creates a planned supply
func NewSupply(supplier string, expectedAt *time.Time, rows []SupplyRowInput) (*Supply, error) {
	if len(rows) == 0 {
		return nil, shared.NewDomainError("EMPTY_SUPPLY", "Supply must contain at least one row")
	}
	s := &Supply{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            NewSupplyNumber(time.Now()),
		Supplier:          strings.TrimSpace(supplier),
		Status:            SupplyStatusPlanned,
		ExpectedAt:        expectedAt,
	}
	for i, in := range rows {
		if err := s.addRow(in); err != nil {
			return nil, shared.NewDomainError("INVALID_SUPPLY_ROW", fmt.Sprintf("row %d: %s", i+1, err.Error()))
		}
	}
	s.AddDomainEvent(NewSupplyPlannedEvent(s))
	return s, nil
}

// NewSupplyNumber builds a human readable supply number
func NewSupplyNumber(now time.Time) string {
	return fmt.Sprintf("SUP-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

func (s *Supply) addRow(in SupplyRowInput) error {
	name := strings.TrimSpace(in.FlowerName)
	if name == "" && in.FlowerID == nil {
		return shared.NewDomainError("INVALID_FLOWER", "flower name or ID is required")
	}
	if in.Length <= 0 {
		return shared.NewDomainError("INVALID_LENGTH", "length must be positive")
	}
	if in.Quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "quantity must be positive")
	}
	if in.PurchasePrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "purchase price cannot be negative")
	}
	if in.SalePrice != nil && in.SalePrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "sale price cannot be negative")
	}
	s.Rows = append(s.Rows, SupplyRow{
		ID:            uuid.New(),
		SupplyID:      s.ID,
		FlowerID:      in.FlowerID,
		FlowerName:    name,
		Length:        in.Length,
		Quantity:      in.Quantity,
		PurchasePrice: shared.RoundMoney(in.PurchasePrice),
		SalePrice:     in.SalePrice,
	})
	return nil
}

// TotalQuantity returns the stems in the supply
func (s *Supply) TotalQuantity() int {
	total := 0
	for _, r := range s.Rows {
		total += r.Quantity
	}
	return total
}

// TotalCost returns the purchase value of the supply
func (s *Supply) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Rows {
		total = total.Add(r.PurchasePrice.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}
	return total
}

// MarkReceived moves a planned supply to received. Stock changes are applied by the caller.
func (s *Supply) MarkReceived(by *uuid.UUID) error {
	if s.Status != SupplyStatusPlanned {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot receive supply in %s status", s.Status))
	}
	now := time.Now()
	s.Status = SupplyStatusReceived
	s.ReceivedAt = &now
	s.ReceivedBy = by
	s.UpdatedAt = now
	s.IncrementVersion()
	s.AddDomainEvent(NewSupplyReceivedEvent(s))
	return nil
}

// Cancel moves a planned supply to cancelled
func (s *Supply) Cancel() error {
	if s.Status != SupplyStatusPlanned {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel supply in %s status", s.Status))
	}
	s.Status = SupplyStatusCancelled
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewSupplyCancelledEvent(s))
	return nil
}
