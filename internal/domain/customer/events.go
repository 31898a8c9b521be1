package customer

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeCustomer = "Customer"

// Event type constants. EventTypeCustomerCreated doubles as the queue name.
const (
	EventTypeCustomerCreated = "customer.created"
)

// CustomerCreatedEvent asks for the customer's address to be enriched from its postal code
type CustomerCreatedEvent struct {
	shared.BaseDomainEvent
	CustomerID string    `json:"customerId"`
	PostalCode string    `json:"postalCode"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCustomerCreatedEvent creates a new CustomerCreatedEvent
func NewCustomerCreatedEvent(c *Customer) *CustomerCreatedEvent {
	base := shared.NewBaseDomainEvent(EventTypeCustomerCreated, AggregateTypeCustomer, c.ID)
	return &CustomerCreatedEvent{
		BaseDomainEvent: base,
		CustomerID:      c.ID,
		PostalCode:      c.Address.PostalCode,
		Timestamp:       base.Timestamp,
	}
}
