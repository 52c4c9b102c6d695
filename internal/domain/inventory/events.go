package inventory

import (
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeSupply is the aggregate type name of supplies
const AggregateTypeSupply = "Supply"

// Event type constants
const (
	EventTypeSupplyPlanned   = "SupplyPlanned"
	EventTypeSupplyReceived  = "SupplyReceived"
	EventTypeSupplyCancelled = "SupplyCancelled"
)

// SupplyEvent is published on supply lifecycle changes
type SupplyEvent struct {
	shared.BaseDomainEvent
	Number        string       `json:"number"`
	Status        SupplyStatus `json:"status"`
	TotalQuantity int          `json:"total_quantity"`
}

func newSupplyEvent(eventType string, s *Supply) *SupplyEvent {
	return &SupplyEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSupply, s.ID),
		Number:          s.Number,
		Status:          s.Status,
		TotalQuantity:   s.TotalQuantity(),
	}
}

// NewSupplyPlannedEvent creates a SupplyPlanned event
func NewSupplyPlannedEvent(s *Supply) *SupplyEvent {
	return newSupplyEvent(EventTypeSupplyPlanned, s)
}

// NewSupplyReceivedEvent creates a SupplyReceived event
func NewSupplyReceivedEvent(s *Supply) *SupplyEvent {
	return newSupplyEvent(EventTypeSupplyReceived, s)
}

// NewSupplyCancelledEvent creates a SupplyCancelled event
func NewSupplyCancelledEvent(s *Supply) *SupplyEvent {
	return newSupplyEvent(EventTypeSupplyCancelled, s)
}

// EventTypeStockLow is published when an operation leaves a variant at or below the low-stock threshold
const EventTypeStockLow = "StockLow"

// StockLowEvent reports a variant running out
type StockLowEvent struct {
	shared.BaseDomainEvent
	VariantID  uuid.UUID `json:"variant_id"`
	FlowerName string    `json:"flower_name"`
	Length     int       `json:"length"`
	Stock      int       `json:"stock"`
	Threshold  int       `json:"threshold"`
}

// NewStockLowEvent creates a StockLow event keyed by the flower aggregate
func NewStockLowEvent(flowerID, variantID uuid.UUID, flowerName string, length, stock, threshold int) *StockLowEvent {
	return &StockLowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockLow, "Flower", flowerID),
		VariantID:       variantID,
		FlowerName:      flowerName,
		Length:          length,
		Stock:           stock,
		Threshold:       threshold,
	}
}
