package catalog

import (
	"fmt"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Variant is a sellable stem length of a flower. Stock is counted in stems.
type Variant struct {
	shared.BaseEntity
	FlowerID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_variant_flower_length,priority:1"`
	Length   int             `gorm:"not null;uniqueIndex:idx_variant_flower_length,priority:2"`
	Stock    int             `gorm:"not null;default:0"`
	Price    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Flower   *Flower         `gorm:"foreignKey:FlowerID"`
}

// TableName returns the table name for GORM
func (Variant) TableName() string {
	return "flower_variants"
}

// NewVariant creates a variant
func NewVariant(flowerID uuid.UUID, length int, price decimal.Decimal, stock int) (*Variant, error) {
	if length <= 0 {
		return nil, shared.NewDomainError("INVALID_LENGTH", "Stem length must be positive")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	if stock < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Stock cannot be negative")
	}
	return &Variant{
		BaseEntity: shared.NewBaseEntity(),
		FlowerID:   flowerID,
		Length:     length,
		Stock:      stock,
		Price:      shared.RoundMoney(price),
	}, nil
}

// FlowerName returns the owning flower's name when it was loaded
func (v *Variant) FlowerName() string {
	if v.Flower == nil {
		return ""
	}
	return v.Flower.Name
}

// Label is a human readable SKU name such as "Rose 60 cm"
func (v *Variant) Label() string {
	return fmt.Sprintf("%s %d cm", v.FlowerName(), v.Length)
}

// SetPrice changes the sale price
func (v *Variant) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	v.Price = shared.RoundMoney(price)
	v.UpdatedAt = time.Now()
	return nil
}

// Decrease takes stems out of stock
func (v *Variant) Decrease(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if v.Stock < quantity {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Insufficient stock for %s: available %d, requested %d", v.Label(), v.Stock, quantity))
	}
	v.Stock -= quantity
	v.UpdatedAt = time.Now()
	return nil
}

// Increase puts stems back into stock
func (v *Variant) Increase(quantity int) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	v.Stock += quantity
	v.UpdatedAt = time.Now()
	return nil
}

// SetStock overwrites the stock with a counted value and returns the delta
func (v *Variant) SetStock(counted int) (int, error) {
	if counted < 0 {
		return 0, shared.NewDomainError("INVALID_QUANTITY", "Stock cannot be negative")
	}
	delta := counted - v.Stock
	v.Stock = counted
	v.UpdatedAt = time.Now()
	return delta, nil
}

// StockValue is stock multiplied by the sale price
func (v *Variant) StockValue() decimal.Decimal {
	return v.Price.Mul(decimal.NewFromInt(int64(v.Stock)))
}
