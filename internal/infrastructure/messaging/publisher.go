package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// publishChannel is the subset of *amqp.Channel the publisher uses
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes domain events to a single durable queue through the
// default exchange. It implements shared.EventPublisher.
type Publisher struct {
	mu         sync.Mutex
	ch         publishChannel
	queue      string
	propagator propagation.TextMapPropagator
	logger     *zap.Logger
}

var _ shared.EventPublisher = (*Publisher)(nil)

// PublisherOption configures the Publisher
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPublisherPropagator overrides the global text map propagator
func WithPublisherPropagator(prop propagation.TextMapPropagator) PublisherOption {
	return func(p *Publisher) {
		if prop != nil {
			p.propagator = prop
		}
	}
}

// NewPublisher opens a channel on the client and declares the queue
func NewPublisher(client *RabbitMQClient, queue string, opts ...PublisherOption) (*Publisher, error) {
	if err := client.DeclareQueue(queue); err != nil {
		return nil, err
	}
	ch, err := client.Channel()
	if err != nil {
		return nil, err
	}
	return newPublisher(ch, queue, opts...), nil
}

func newPublisher(ch publishChannel, queue string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		ch:         ch,
		queue:      queue,
		propagator: otel.GetTextMapPropagator(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends each event as a persistent JSON message. It stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, event shared.DomainEvent) error {
	ctx, span := telemetry.StartSpan(ctx, p.queue+" publish",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute(telemetry.SpanAttrQueue, p.queue),
		telemetry.WithAttribute(telemetry.SpanAttrMessageID, event.EventID()),
	)
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}

	headers := amqp.Table{}
	p.propagator.Inject(ctx, headerCarrier(headers))

	msg := amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Type:         event.EventType(),
		Timestamp:    event.OccurredAt(),
		Body:         body,
	}

	p.mu.Lock()
	ch := p.ch
	if ch == nil {
		p.mu.Unlock()
		telemetry.RecordError(span, ErrClientClosed)
		return ErrClientClosed
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}

	telemetry.SetOK(span)
	p.logger.Debug("Event published",
		zap.String("event_id", event.EventID()),
		zap.String("event_type", event.EventType()),
		zap.String("queue", p.queue),
	)
	return nil
}

// Close closes the publishing channel
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
