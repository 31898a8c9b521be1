package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrDeliveriesClosed is returned by Run when the broker stops delivering
var ErrDeliveriesClosed = errors.New("rabbitmq deliveries channel closed")

// MessageHandler processes one delivery body. A returned error means the body
// could not be understood at all; the message is then rejected without requeue.
type MessageHandler interface {
	HandleMessage(ctx context.Context, messageID string, body []byte) error
}

// consumeChannel is the subset of *amqp.Channel the consumer uses
type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Consumer delivers messages of one queue to a handler, one at a time
type Consumer struct {
	ch         consumeChannel
	queue      string
	tag        string
	prefetch   int
	handler    MessageHandler
	propagator propagation.TextMapPropagator
	logger     *zap.Logger
}

// ConsumerOption configures the Consumer
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *zap.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrefetch sets the channel prefetch count
func WithPrefetch(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithConsumerTag sets the consumer tag reported to the broker
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.tag = tag
	}
}

// WithConsumerPropagator overrides the global text map propagator
func WithConsumerPropagator(prop propagation.TextMapPropagator) ConsumerOption {
	return func(c *Consumer) {
		if prop != nil {
			c.propagator = prop
		}
	}
}

// NewConsumer opens a channel on the client and declares the queue
func NewConsumer(client *RabbitMQClient, queue string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	if err := client.DeclareQueue(queue); err != nil {
		return nil, err
	}
	ch, err := client.Channel()
	if err != nil {
		return nil, err
	}
	return newConsumer(ch, queue, handler, opts...), nil
}

func newConsumer(ch consumeChannel, queue string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		ch:         ch,
		queue:      queue,
		prefetch:   1,
		handler:    handler,
		propagator: otel.GetTextMapPropagator(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled, which returns nil, or the broker closes
// the deliveries channel, which returns ErrDeliveriesClosed.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	deliveries, err := c.ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", c.queue, err)
	}

	c.logger.Info("Consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopped", zap.String("queue", c.queue))
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if d.Headers != nil {
		ctx = c.propagator.Extract(ctx, headerCarrier(d.Headers))
	}
	ctx, span := telemetry.StartSpan(ctx, c.queue+" process",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrQueue, c.queue),
		telemetry.WithAttribute(telemetry.SpanAttrMessageID, d.MessageId),
	)
	defer span.End()

	log := c.logger.With(
		zap.String("message_id", d.MessageId),
		zap.Uint64("delivery_tag", d.DeliveryTag),
	)

	if err := c.handler.HandleMessage(ctx, d.MessageId, d.Body); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Rejecting undecodable message", zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
		return
	}

	telemetry.SetOK(span)
	if err := d.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
}

// Close closes the consuming channel; pending unacked deliveries are requeued by the broker
func (c *Consumer) Close() error {
	err := c.ch.Close()
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
