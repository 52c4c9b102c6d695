package pos

import (
	"time"

	"github.com/flora/backend/internal/domain/pos"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItemRequest is one line of a sale. Price defaults to the variant price.
type SaleItemRequest struct {
	VariantID uuid.UUID        `json:"variant_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	Price     *decimal.Decimal `json:"price"`
}

// CreateSaleRequest registers a sale
type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	Discount      decimal.Decimal   `json:"discount"`
	PaymentMethod string            `json:"payment_method" binding:"omitempty,oneof=cash card transfer"`
	PaymentStatus string            `json:"payment_status" binding:"omitempty,oneof=paid pending"`
	CustomerID    *uuid.UUID        `json:"customer_id"`
	Notes         string            `json:"notes" binding:"max=1000"`

	// IdempotencyKey comes from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// WriteOffItemRequest is one line of a write-off
type WriteOffItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateWriteOffRequest registers damaged or unsellable stems
type CreateWriteOffRequest struct {
	Items  []WriteOffItemRequest `json:"items" binding:"required,min=1,dive"`
	Reason string                `json:"reason" binding:"required,max=255"`
	Notes  string                `json:"notes" binding:"max=1000"`
}

// ConfirmPaymentRequest settles a pending sale
type ConfirmPaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"omitempty,oneof=cash card transfer"`
}

// ReturnItemRequest selects a sale line by item ID or variant ID
type ReturnItemRequest struct {
	ItemID    *uuid.UUID `json:"item_id"`
	VariantID *uuid.UUID `json:"variant_id" binding:"required_without=ItemID"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

// ReturnRequest returns part or all of a sale. No items means everything returnable.
type ReturnRequest struct {
	Items  []ReturnItemRequest `json:"items" binding:"omitempty,dive"`
	Reason string              `json:"reason" binding:"max=255"`
}

// BalanceRequest is a counted stock balance of one variant
type BalanceRequest struct {
	VariantID uuid.UUID `json:"variant_id" binding:"required"`
	Stock     *int      `json:"stock" binding:"required,min=0"`
}

// SyncBalancesRequest overwrites stock with counted balances
type SyncBalancesRequest struct {
	Balances []BalanceRequest `json:"balances" binding:"required,min=1,dive"`
	Reason   string           `json:"reason" binding:"max=255"`
}

// BalanceChangeResponse reports one variant touched by a sync
type BalanceChangeResponse struct {
	VariantID  uuid.UUID `json:"variant_id"`
	FlowerID   uuid.UUID `json:"flower_id"`
	FlowerName string    `json:"flower_name"`
	Length     int       `json:"length"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
	Delta      int       `json:"delta"`
}

// SyncBalancesResponse lists every synced variant, unchanged ones included
type SyncBalancesResponse struct {
	Changes   []BalanceChangeResponse `json:"changes"`
	Changed   int                     `json:"changed"`
	Unchanged int                     `json:"unchanged"`
	Reason    string                  `json:"reason"`
}

// TransactionItemResponse is a transaction line in API responses
type TransactionItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	VariantID        uuid.UUID       `json:"variant_id"`
	FlowerID         uuid.UUID       `json:"flower_id"`
	FlowerName       string          `json:"flower_name"`
	Length           int             `json:"length"`
	Quantity         int             `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	Total            decimal.Decimal `json:"total"`
	ReturnedQuantity int             `json:"returned_quantity"`
	OriginalItemID   *uuid.UUID      `json:"original_item_id,omitempty"`
}

// TransactionResponse is a POS transaction in API responses
type TransactionResponse struct {
	ID                    uuid.UUID                 `json:"id"`
	Number                string                    `json:"number"`
	Type                  string                    `json:"type"`
	Status                string                    `json:"status"`
	PaymentStatus         string                    `json:"payment_status"`
	PaymentMethod         string                    `json:"payment_method,omitempty"`
	ShiftID               uuid.UUID                 `json:"shift_id"`
	CustomerID            *uuid.UUID                `json:"customer_id"`
	Subtotal              decimal.Decimal           `json:"subtotal"`
	Discount              decimal.Decimal           `json:"discount"`
	Total                 decimal.Decimal           `json:"total"`
	TotalQuantity         int                       `json:"total_quantity"`
	OriginalTransactionID *uuid.UUID                `json:"original_transaction_id,omitempty"`
	Reason                string                    `json:"reason,omitempty"`
	Notes                 string                    `json:"notes,omitempty"`
	OperatorID            uuid.UUID                 `json:"operator_id"`
	OperatorKind          string                    `json:"operator_kind"`
	PaidAt                *time.Time                `json:"paid_at"`
	PaidShiftID           *uuid.UUID                `json:"paid_shift_id,omitempty"`
	Items                 []TransactionItemResponse `json:"items"`
	CreatedAt             time.Time                 `json:"created_at"`
	UpdatedAt             time.Time                 `json:"updated_at"`
	Version               int                       `json:"version"`

	// Replayed is true when an Idempotency-Key matched an earlier sale
	Replayed bool `json:"replayed,omitempty"`
}

// ReturnResponse carries the return and the updated original sale
type ReturnResponse struct {
	Return   TransactionResponse `json:"return"`
	Original TransactionResponse `json:"original"`
}

// TransactionListFilter represents filter options for transaction listings
type TransactionListFilter struct {
	Type          string     `form:"type" binding:"omitempty,oneof=sale write_off return"`
	ShiftID       *uuid.UUID `form:"shift_id"`
	CustomerID    *uuid.UUID `form:"customer_id"`
	PaymentStatus string     `form:"payment_status" binding:"omitempty,oneof=paid pending refunded not_applicable"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
	Search        string     `form:"search"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir      string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// OpenShiftRequest starts a shift
type OpenShiftRequest struct {
	OpeningCash decimal.Decimal `json:"opening_cash"`
}

// CloseShiftRequest closes the open shift
type CloseShiftRequest struct {
	ClosingCash *decimal.Decimal `json:"closing_cash"`
	Notes       string           `json:"notes" binding:"max=2000"`
}

// ShiftResponse is a shift in API responses
type ShiftResponse struct {
	ID             uuid.UUID        `json:"id"`
	Number         string           `json:"number"`
	Status         string           `json:"status"`
	OpenedAt       time.Time        `json:"opened_at"`
	OpenedBy       uuid.UUID        `json:"opened_by"`
	ClosedAt       *time.Time       `json:"closed_at"`
	ClosedBy       *uuid.UUID       `json:"closed_by"`
	OpeningCash    decimal.Decimal  `json:"opening_cash"`
	ClosingCash    *decimal.Decimal `json:"closing_cash"`
	ExpectedCash   decimal.Decimal  `json:"expected_cash"`
	CashDifference decimal.Decimal  `json:"cash_difference"`
	Notes          string           `json:"notes,omitempty"`
	Summary        pos.ShiftSummary `json:"summary"`
	Version        int              `json:"version"`
}

// ShiftListFilter represents filter options for shift listings
type ShiftListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=open closed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToTransactionResponse converts a transaction to its API form
func ToTransactionResponse(t *pos.Transaction) TransactionResponse {
	items := make([]TransactionItemResponse, len(t.Items))
	for i, it := range t.Items {
		items[i] = TransactionItemResponse{
			ID:               it.ID,
			VariantID:        it.VariantID,
			FlowerID:         it.FlowerID,
			FlowerName:       it.FlowerName,
			Length:           it.Length,
			Quantity:         it.Quantity,
			Price:            it.Price,
			Total:            it.Total,
			ReturnedQuantity: it.ReturnedQuantity,
			OriginalItemID:   it.OriginalItemID,
		}
	}
	return TransactionResponse{
		ID:                    t.ID,
		Number:                t.Number,
		Type:                  string(t.Type),
		Status:                string(t.Status),
		PaymentStatus:         string(t.PaymentStatus),
		PaymentMethod:         string(t.PaymentMethod),
		ShiftID:               t.ShiftID,
		CustomerID:            t.CustomerID,
		Subtotal:              t.Subtotal,
		Discount:              t.Discount,
		Total:                 t.Total,
		TotalQuantity:         t.TotalQuantity(),
		OriginalTransactionID: t.OriginalTransactionID,
		Reason:                t.Reason,
		Notes:                 t.Notes,
		OperatorID:            t.OperatorID,
		OperatorKind:          string(t.OperatorKind),
		PaidAt:                t.PaidAt,
		PaidShiftID:           t.PaidShiftID,
		Items:                 items,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
		Version:               t.Version,
	}
}

// ToShiftResponse converts a shift to its API form
func ToShiftResponse(s *pos.Shift) ShiftResponse {
	return ShiftResponse{
		ID:             s.ID,
		Number:         s.Number,
		Status:         string(s.Status),
		OpenedAt:       s.OpenedAt,
		OpenedBy:       s.OpenedBy,
		ClosedAt:       s.ClosedAt,
		ClosedBy:       s.ClosedBy,
		OpeningCash:    s.OpeningCash,
		ClosingCash:    s.ClosingCash,
		ExpectedCash:   s.ExpectedCash,
		CashDifference: s.CashDifference,
		Notes:          s.Notes,
		Summary:        s.ShiftSummary,
		Version:        s.Version,
	}
}
