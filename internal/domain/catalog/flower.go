package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Flower is a product in the catalog. It is the aggregate root for its variants.
type Flower struct {
	shared.BaseAggregateRoot
	DocumentID  string    `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Slug        string    `gorm:"type:varchar(120);not null;uniqueIndex"`
	Description string    `gorm:"type:text"`
	Color       string    `gorm:"type:varchar(60)"`
	Country     string    `gorm:"type:varchar(60)"`
	Images      []string  `gorm:"type:text;serializer:json"`
	Published   bool      `gorm:"not null"`
	Variants    []Variant `gorm:"foreignKey:FlowerID"`
}

// TableName returns the table name for GORM
func (Flower) TableName() string {
	return "flowers"
}

// NewFlower creates a flower with an already resolved unique slug
func NewFlower(name, slug string) (*Flower, error) {
	name = strings.TrimSpace(name)
	if err := validateFlowerName(name); err != nil {
		return nil, err
	}
	if slug == "" {
		return nil, shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}

	f := &Flower{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DocumentID:        NewDocumentID(),
		Name:              name,
		Slug:              slug,
		Images:            []string{},
		Published:         true,
		Variants:          []Variant{},
	}
	f.AddDomainEvent(NewFlowerCreatedEvent(f))
	return f, nil
}

// NewDocumentID generates the public identifier that survives edits
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// FlowerDetails carries optional field changes; nil fields are left untouched
type FlowerDetails struct {
	Description *string
	Color       *string
	Country     *string
	Images      []string
	Published   *bool
}

// Rename changes the display name together with the slug derived from it
func (f *Flower) Rename(name, slug string) error {
	name = strings.TrimSpace(name)
	if err := validateFlowerName(name); err != nil {
		return err
	}
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}
	f.Name = name
	f.Slug = slug
	f.UpdatedAt = time.Now()
	return nil
}

// ApplyDetails applies non-nil detail changes
func (f *Flower) ApplyDetails(d FlowerDetails) {
	if d.Description != nil {
		f.Description = *d.Description
	}
	if d.Color != nil {
		f.Color = strings.TrimSpace(*d.Color)
	}
	if d.Country != nil {
		f.Country = strings.TrimSpace(*d.Country)
	}
	if d.Images != nil {
		f.Images = append([]string{}, d.Images...)
	}
	if d.Published != nil {
		f.Published = *d.Published
	}
	f.UpdatedAt = time.Now()
}

// MarkUpdated bumps the version and records an update event
func (f *Flower) MarkUpdated() {
	f.IncrementVersion()
	f.AddDomainEvent(NewFlowerUpdatedEvent(f))
}

// VariantByID returns the variant with the given ID, or nil
func (f *Flower) VariantByID(id uuid.UUID) *Variant {
	for i := range f.Variants {
		if f.Variants[i].ID == id {
			return &f.Variants[i]
		}
	}
	return nil
}

// VariantByLength returns the variant with the given stem length, or nil
func (f *Flower) VariantByLength(length int) *Variant {
	for i := range f.Variants {
		if f.Variants[i].Length == length {
			return &f.Variants[i]
		}
	}
	return nil
}

// AddVariant adds a new stem length to the flower
func (f *Flower) AddVariant(length int, price decimal.Decimal, stock int) (*Variant, error) {
	if f.VariantByLength(length) != nil {
		return nil, shared.NewDomainError("DUPLICATE_VARIANT", "Variant with this length already exists")
	}
	v, err := NewVariant(f.ID, length, price, stock)
	if err != nil {
		return nil, err
	}
	f.Variants = append(f.Variants, *v)
	f.UpdatedAt = time.Now()
	return &f.Variants[len(f.Variants)-1], nil
}

// RemoveVariant drops a variant. Variants still holding stock cannot be removed.
func (f *Flower) RemoveVariant(id uuid.UUID) error {
	for i := range f.Variants {
		if f.Variants[i].ID != id {
			continue
		}
		if f.Variants[i].Stock > 0 {
			return shared.NewDomainError("VARIANT_HAS_STOCK", "Variant with stock on hand cannot be deleted")
		}
		removed := f.Variants[i]
		f.Variants = append(f.Variants[:i], f.Variants[i+1:]...)
		f.IncrementVersion()
		f.AddDomainEvent(NewVariantRemovedEvent(f, &removed))
		return nil
	}
	return shared.ErrNotFound
}

// TotalStock returns the number of stems across all variants
func (f *Flower) TotalStock() int {
	total := 0
	for _, v := range f.Variants {
		total += v.Stock
	}
	return total
}

func validateFlowerName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Flower name cannot be empty")
	}
	if utf8.RuneCountInString(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Flower name cannot exceed 200 characters")
	}
	return nil
}
