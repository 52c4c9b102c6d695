package inventory

import (
	"time"

	"github.com/flora/backend/internal/domain/inventory"
	"github.com/flora/backend/internal/infrastructure/spreadsheet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplyRowRequest is one line of a planned supply
type SupplyRowRequest struct {
	FlowerID      *uuid.UUID       `json:"flower_id"`
	FlowerName    string           `json:"flower_name" binding:"required_without=FlowerID,max=200"`
	Length        int              `json:"length" binding:"required,min=1"`
	Quantity      int              `json:"quantity" binding:"required,min=1"`
	PurchasePrice decimal.Decimal  `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
}

// CreateSupplyRequest plans a new supply
type CreateSupplyRequest struct {
	Supplier   string             `json:"supplier" binding:"max=200"`
	ExpectedAt *time.Time         `json:"expected_at"`
	Notes      string             `json:"notes" binding:"max=2000"`
	Rows       []SupplyRowRequest `json:"rows" binding:"required,min=1,dive"`
}

// ImportSupplyRequest carries an uploaded supply sheet
type ImportSupplyRequest struct {
	Filename   string
	Supplier   string
	ExpectedAt *time.Time
	Notes      string
}

// SupplyRowResponse is a supply line in API responses
type SupplyRowResponse struct {
	ID            uuid.UUID        `json:"id"`
	FlowerID      *uuid.UUID       `json:"flower_id"`
	VariantID     *uuid.UUID       `json:"variant_id"`
	FlowerName    string           `json:"flower_name"`
	Length        int              `json:"length"`
	Quantity      int              `json:"quantity"`
	PurchasePrice decimal.Decimal  `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
}

// SupplyResponse is a supply in API responses
type SupplyResponse struct {
	ID            uuid.UUID           `json:"id"`
	Number        string              `json:"number"`
	Supplier      string              `json:"supplier"`
	Status        string              `json:"status"`
	ExpectedAt    *time.Time          `json:"expected_at"`
	ReceivedAt    *time.Time          `json:"received_at"`
	ReceivedBy    *uuid.UUID          `json:"received_by"`
	Notes         string              `json:"notes"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	Rows          []SupplyRowResponse `json:"rows"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Version       int                 `json:"version"`
}

// ImportSupplyResponse reports the outcome of a sheet upload. Supply is nil
// when any row was rejected.
type ImportSupplyResponse struct {
	Supply       *SupplyResponse        `json:"supply"`
	TotalRows    int                    `json:"total_rows"`
	ImportedRows int                    `json:"imported_rows"`
	Errors       []spreadsheet.RowError `json:"errors"`
	ErrorCount   int                    `json:"error_count"`
	Truncated    bool                   `json:"truncated"`
}

// SupplyListFilter represents filter options for supply listings
type SupplyListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=planned received cancelled"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// MovementListFilter represents filter options for the stock ledger
type MovementListFilter struct {
	VariantID  *uuid.UUID `form:"variant_id"`
	FlowerID   *uuid.UUID `form:"flower_id"`
	SourceType string     `form:"source_type"`
	SourceID   *uuid.UUID `form:"source_id"`
	Type       string     `form:"type" binding:"omitempty,oneof=sale write_off return supply adjustment"`
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// MovementResponse is a ledger row in API responses
type MovementResponse struct {
	ID            uuid.UUID  `json:"id"`
	VariantID     uuid.UUID  `json:"variant_id"`
	FlowerID      uuid.UUID  `json:"flower_id"`
	Type          string     `json:"type"`
	Quantity      int        `json:"quantity"`
	BalanceBefore int        `json:"balance_before"`
	BalanceAfter  int        `json:"balance_after"`
	SourceType    string     `json:"source_type"`
	SourceID      uuid.UUID  `json:"source_id"`
	Reason        string     `json:"reason"`
	OperatorID    *uuid.UUID `json:"operator_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToSupplyResponse converts a domain supply to a response
func ToSupplyResponse(s *inventory.Supply) SupplyResponse {
	rows := make([]SupplyRowResponse, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = SupplyRowResponse{
			ID:            r.ID,
			FlowerID:      r.FlowerID,
			VariantID:     r.VariantID,
			FlowerName:    r.FlowerName,
			Length:        r.Length,
			Quantity:      r.Quantity,
			PurchasePrice: r.PurchasePrice,
			SalePrice:     r.SalePrice,
		}
	}
	return SupplyResponse{
		ID:            s.ID,
		Number:        s.Number,
		Supplier:      s.Supplier,
		Status:        string(s.Status),
		ExpectedAt:    s.ExpectedAt,
		ReceivedAt:    s.ReceivedAt,
		ReceivedBy:    s.ReceivedBy,
		Notes:         s.Notes,
		TotalQuantity: s.TotalQuantity(),
		TotalCost:     s.TotalCost(),
		Rows:          rows,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Version:       s.Version,
	}
}

// ToMovementResponse converts a ledger row to a response
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		VariantID:     m.VariantID,
		FlowerID:      m.FlowerID,
		Type:          string(m.Type),
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		SourceType:    m.SourceType,
		SourceID:      m.SourceID,
		Reason:        m.Reason,
		OperatorID:    m.OperatorID,
		CreatedAt:     m.CreatedAt,
	}
}

func (r SupplyRowRequest) toInput() inventory.SupplyRowInput {
	return inventory.SupplyRowInput{
		FlowerID:      r.FlowerID,
		FlowerName:    r.FlowerName,
		Length:        r.Length,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		SalePrice:     r.SalePrice,
	}
}
