package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingPayments summarizes sales waiting for payment
type PendingPayments struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ShiftInfo describes the currently open shift
type ShiftInfo struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"number"`
	OpenedAt   time.Time       `json:"opened_at"`
	SalesCount int             `json:"sales_count"`
	SalesTotal decimal.Decimal `json:"sales_total"`
	CashTotal  decimal.Decimal `json:"cash_total"`
}

// Dashboard is the response of the dashboard endpoint
type Dashboard struct {
	Date            string          `json:"date"`
	Today           Totals          `json:"today"`
	PendingPayments PendingPayments `json:"pending_payments"`
	Stock           StockTotals     `json:"stock"`
	CurrentShift    *ShiftInfo      `json:"current_shift"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
