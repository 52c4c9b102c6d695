package shared

import (
	"context"

	"github.com/flora/backend/internal/domain/shared"
)

// EventSource is anything that collects domain events until they are published
type EventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// PublishEvents publishes and clears the pending events of every source.
// It is called after the surrounding transaction committed. A nil publisher
// only clears the events.
func PublishEvents(ctx context.Context, publisher shared.EventPublisher, sources ...EventSource) {
	var events []shared.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		events = append(events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
	if publisher == nil || len(events) == 0 {
		return
	}
	// the bus logs handler failures itself
	_ = publisher.Publish(ctx, events...)
}

// EventList is an EventSource for events that do not belong to an aggregate
type EventList []shared.DomainEvent

// GetDomainEvents returns the events
func (l *EventList) GetDomainEvents() []shared.DomainEvent {
	return *l
}

// ClearDomainEvents empties the list
func (l *EventList) ClearDomainEvents() {
	*l = nil
}

// Add appends an event
func (l *EventList) Add(ev shared.DomainEvent) {
	*l = append(*l, ev)
}
