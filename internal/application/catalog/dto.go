package catalog

import (
	"time"

	"github.com/flora/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantResponse represents a variant in API responses
type VariantResponse struct {
	ID     uuid.UUID       `json:"id"`
	Length int             `json:"length"`
	Stock  int             `json:"stock"`
	Price  decimal.Decimal `json:"price"`
}

// FlowerResponse represents a flower in API responses
type FlowerResponse struct {
	ID          uuid.UUID         `json:"id"`
	DocumentID  string            `json:"documentId"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Color       string            `json:"color"`
	Country     string            `json:"country"`
	Images      []string          `json:"images"`
	Published   bool              `json:"published"`
	TotalStock  int               `json:"total_stock"`
	Variants    []VariantResponse `json:"variants"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ToFlowerResponse converts a domain Flower to a response
func ToFlowerResponse(f *catalog.Flower) FlowerResponse {
	variants := make([]VariantResponse, 0, len(f.Variants))
	for _, v := range f.Variants {
		variants = append(variants, VariantResponse{ID: v.ID, Length: v.Length, Stock: v.Stock, Price: v.Price})
	}
	images := f.Images
	if images == nil {
		images = []string{}
	}
	return FlowerResponse{
		ID:          f.ID,
		DocumentID:  f.DocumentID,
		Name:        f.Name,
		Slug:        f.Slug,
		Description: f.Description,
		Color:       f.Color,
		Country:     f.Country,
		Images:      images,
		Published:   f.Published,
		TotalStock:  f.TotalStock(),
		Variants:    variants,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// FlowerListFilter represents query options for the flower list
type FlowerListFilter struct {
	Search   string `form:"search"`
	InStock  bool   `form:"in_stock"`
	All      bool   `form:"all"` // include unpublished, admin only
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// VariantInput describes a variant in create and safe-update payloads.
// In safe-update it is matched by ID first, then by length.
type VariantInput struct {
	ID     *uuid.UUID       `json:"id"`
	Length *int             `json:"length" binding:"omitempty,gt=0"`
	Price  *decimal.Decimal `json:"price"`
	Stock  *int             `json:"stock" binding:"omitempty,min=0"`
}

// CreateFlowerRequest is the payload of flower creation
type CreateFlowerRequest struct {
	Name        string         `json:"name" binding:"required,min=1,max=200"`
	Description string         `json:"description"`
	Color       string         `json:"color" binding:"max=60"`
	Country     string         `json:"country" binding:"max=60"`
	Images      []string       `json:"images"`
	Published   *bool          `json:"published"`
	Variants    []VariantInput `json:"variants" binding:"omitempty,dive"`
}

// SafeUpdateRequest is a partial update: only present fields change and
// variants missing from the payload are kept
type SafeUpdateRequest struct {
	Version     *int           `json:"version"`
	Name        *string        `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string        `json:"description"`
	Color       *string        `json:"color" binding:"omitempty,max=60"`
	Country     *string        `json:"country" binding:"omitempty,max=60"`
	Images      []string       `json:"images"`
	Published   *bool          `json:"published"`
	Variants    []VariantInput `json:"variants" binding:"omitempty,dive"`
	Reason      string         `json:"reason" binding:"max=255"`
}

// StockAdjustment reports a stock change made by a safe update
type StockAdjustment struct {
	VariantID uuid.UUID `json:"variant_id"`
	Length    int       `json:"length"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
	Delta     int       `json:"delta"`
}

// SafeUpdateResponse is the result of a safe update
type SafeUpdateResponse struct {
	Flower      FlowerResponse    `json:"flower"`
	Created     []uuid.UUID       `json:"created_variants"`
	Adjustments []StockAdjustment `json:"stock_adjustments"`
}
