package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	defaultURI      = "mongodb://localhost:27017"
	defaultDatabase = "mirror_of_truth"
	connectTimeout  = 10 * time.Second
)

// ClientOptions selects the deployment holding the mood history
type ClientOptions struct {
	URI      string
	Database string
	// MaxPoolSize bounds concurrent connections. Zero keeps 10.
	MaxPoolSize uint64
}

// Client owns the connection used by the mood history
type Client struct {
	client   *mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects and verifies the primary is reachable
func NewClient(ctx context.Context, opts ClientOptions, logger *zap.Logger) (*Client, error) {
	if opts.URI == "" {
		opts.URI = defaultURI
	}
	if opts.Database == "" {
		opts.Database = defaultDatabase
	}
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = 10
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetAppName("mirror-of-truth").
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(1).
		SetRetryWrites(true).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	c := &Client{
		client:   client,
		Database: client.Database(opts.Database),
		logger:   logger,
	}
	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Mood history connected to MongoDB", zap.String("database", opts.Database))
	return c, nil
}

// Ping checks the primary
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// Close disconnects, waiting for in-flight history writes until ctx is done
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
