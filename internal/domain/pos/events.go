package pos

import (
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeTransaction = "Transaction"
	AggregateTypeShift       = "Shift"
)

// Event type constants
const (
	EventTypeSaleCompleted       = "SaleCompleted"
	EventTypeWriteOffRecorded    = "WriteOffRecorded"
	EventTypePaymentConfirmed    = "PaymentConfirmed"
	EventTypeTransactionReturned = "TransactionReturned"
	EventTypeBalancesSynced      = "BalancesSynced"
	EventTypeShiftOpened         = "ShiftOpened"
	EventTypeShiftClosed         = "ShiftClosed"
)

// TransactionEvent is published for every POS document change
type TransactionEvent struct {
	shared.BaseDomainEvent
	Number        string          `json:"number"`
	Type          TransactionType `json:"transaction_type"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	ShiftID       uuid.UUID       `json:"shift_id"`
	CustomerID    *uuid.UUID      `json:"customer_id,omitempty"`
	Quantity      int             `json:"quantity"`
}

// NewTransactionEvent creates a TransactionEvent of the given type
func NewTransactionEvent(eventType string, t *Transaction) *TransactionEvent {
	return &TransactionEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeTransaction, t.ID),
		Number:          t.Number,
		Type:            t.Type,
		Total:           t.Total,
		PaymentStatus:   t.PaymentStatus,
		PaymentMethod:   t.PaymentMethod,
		ShiftID:         t.ShiftID,
		CustomerID:      t.CustomerID,
		Quantity:        t.TotalQuantity(),
	}
}

// BalanceChange is one counted correction applied by a balance sync
type BalanceChange struct {
	VariantID uuid.UUID `json:"variant_id"`
	FlowerID  uuid.UUID `json:"flower_id"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
	Delta     int       `json:"delta"`
}

// BalancesSyncedEvent is published after counted stock balances were applied
type BalancesSyncedEvent struct {
	shared.BaseDomainEvent
	Changes []BalanceChange `json:"changes"`
	Reason  string          `json:"reason"`
}

// NewBalancesSyncedEvent creates a BalancesSyncedEvent; syncID identifies the sync run
func NewBalancesSyncedEvent(syncID uuid.UUID, changes []BalanceChange, reason string) *BalancesSyncedEvent {
	return &BalancesSyncedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBalancesSynced, "BalanceSync", syncID),
		Changes:         changes,
		Reason:          reason,
	}
}

// ShiftEvent is published when a shift opens or closes
type ShiftEvent struct {
	shared.BaseDomainEvent
	Number  string       `json:"number"`
	Status  ShiftStatus  `json:"status"`
	Summary ShiftSummary `json:"summary"`
}

// NewShiftEvent creates a ShiftEvent of the given type
func NewShiftEvent(eventType string, s *Shift) *ShiftEvent {
	return &ShiftEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeShift, s.ID),
		Number:          s.Number,
		Status:          s.Status,
		Summary:         s.ShiftSummary,
	}
}
