package identity

import "github.com/flora/backend/internal/domain/shared"

// AggregateTypeCustomer is the aggregate type name of customers
const AggregateTypeCustomer = "Customer"

// EventTypeCustomerRegistered is published when a customer is created
const EventTypeCustomerRegistered = "CustomerRegistered"

// CustomerRegisteredEvent is published when a customer is created
type CustomerRegisteredEvent struct {
	shared.BaseDomainEvent
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// NewCustomerRegisteredEvent creates a new CustomerRegisteredEvent
func NewCustomerRegisteredEvent(c *Customer) *CustomerRegisteredEvent {
	return &CustomerRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerRegistered, AggregateTypeCustomer, c.ID),
		Name:            c.Name,
		Contact:         c.Contact(),
	}
}
