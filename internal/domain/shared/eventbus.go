package shared

import "context"

// EventPublisher publishes domain events to an external channel
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

