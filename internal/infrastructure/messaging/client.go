// Package messaging carries domain events over RabbitMQ: a client owning the
// connection, a publisher for outgoing events and a consumer that feeds one
// delivery at a time to a handler.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crm/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrClientClosed is returned when the connection is gone
var ErrClientClosed = errors.New("rabbitmq connection is closed")

// RabbitMQClient owns one AMQP connection. It is constructed by the process
// bootstrap and passed to publishers and consumers.
type RabbitMQClient struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	logger *zap.Logger
}

// NewRabbitMQClient dials the broker
func NewRabbitMQClient(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQClient, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: amqp.Table{"connection_name": "crm-backend"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	c := &RabbitMQClient{conn: conn, logger: logger}
	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	logger.Info("Connected to RabbitMQ", zap.String("queue", cfg.Queue))
	return c, nil
}

// watch logs an unexpected connection loss; the channel is closed on a clean shutdown
func (c *RabbitMQClient) watch(closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		c.logger.Error("RabbitMQ connection lost",
			zap.Int("code", err.Code),
			zap.String("reason", err.Reason),
		)
	}
}

// Channel opens a new channel on the connection
func (c *RabbitMQClient) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrClientClosed
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	return ch, nil
}

// DeclareQueue declares a durable queue so messages survive a broker restart
func (c *RabbitMQClient) DeclareQueue(name string) error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}

// Ping reports whether the connection is open
func (c *RabbitMQClient) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return ErrClientClosed
	}
	return nil
}

// Close closes the connection and every channel opened on it
func (c *RabbitMQClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close rabbitmq connection: %w", err)
	}
	c.logger.Info("RabbitMQ connection closed")
	return nil
}
