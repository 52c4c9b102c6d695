package catalog

import (
	"github.com/flora/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeFlower is the aggregate type name of flowers
const AggregateTypeFlower = "Flower"

// Event type constants
const (
	EventTypeFlowerCreated  = "FlowerCreated"
	EventTypeFlowerUpdated  = "FlowerUpdated"
	EventTypeVariantRemoved = "VariantRemoved"
)

// FlowerCreatedEvent is published when a new flower is created
type FlowerCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

// NewFlowerCreatedEvent creates a new FlowerCreatedEvent
func NewFlowerCreatedEvent(f *Flower) *FlowerCreatedEvent {
	return &FlowerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFlowerCreated, AggregateTypeFlower, f.ID),
		DocumentID:      f.DocumentID,
		Name:            f.Name,
		Slug:            f.Slug,
	}
}

// FlowerUpdatedEvent is published after a flower or its variants changed
type FlowerUpdatedEvent struct {
	shared.BaseDomainEvent
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Version    int    `json:"version"`
}

// NewFlowerUpdatedEvent creates a new FlowerUpdatedEvent
func NewFlowerUpdatedEvent(f *Flower) *FlowerUpdatedEvent {
	return &FlowerUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFlowerUpdated, AggregateTypeFlower, f.ID),
		DocumentID:      f.DocumentID,
		Name:            f.Name,
		Slug:            f.Slug,
		Version:         f.Version,
	}
}

// VariantRemovedEvent is published when an empty variant is deleted
type VariantRemovedEvent struct {
	shared.BaseDomainEvent
	VariantID uuid.UUID `json:"variant_id"`
	Length    int       `json:"length"`
}

// NewVariantRemovedEvent creates a new VariantRemovedEvent
func NewVariantRemovedEvent(f *Flower, v *Variant) *VariantRemovedEvent {
	return &VariantRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVariantRemoved, AggregateTypeFlower, f.ID),
		VariantID:       v.ID,
		Length:          v.Length,
	}
}
