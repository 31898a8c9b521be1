package mongodb

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/infrastructure/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Client owns the driver connection pool and the configured database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      config.MongoConfig
	logger   *zap.Logger
}

// NewClient connects and pings the primary within cfg.Timeout.
func NewClient(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("crm-backend").
		SetTimeout(cfg.Timeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB",
		zap.String("database", cfg.Database),
		zap.Uint64("max_pool_size", cfg.MaxPoolSize),
	)
	return &Client{
		client:   client,
		database: client.Database(cfg.Database),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Customers returns the customer collection.
func (c *Client) Customers() *mongo.Collection {
	return c.database.Collection(c.cfg.CollectionName)
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the pool.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongodb: %w", err)
	}
	c.logger.Info("MongoDB connection closed")
	return nil
}
