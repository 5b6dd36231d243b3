package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	"gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Startup/health"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger

	db          *sql.DB
	mongoClient *mongo.Client

	mu sync.Mutex

	cleanupFuncs []func() error
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(&cfg.Logging)

	return &Container{
		config: cfg,
		logger: log,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the PostgreSQL connection, opening it on first use
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := health.ConnectPostgresWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
	}

	return c.db, nil
}

// GetMongoClient returns the MongoDB client, connecting on first use
func (c *Container) GetMongoClient() (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mongoClient == nil {
		client, err := health.ConnectMongoWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		c.mongoClient = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
	}

	return c.mongoClient, nil
}

// InitializeDatabase creates the PostgreSQL tables
func (c *Container) InitializeDatabase(ctx context.Context) error {
	db, err := c.GetDatabase()
	if err != nil {
		return err
	}

	if err := health.CreateTables(db); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// PingPostgres checks PostgreSQL connectivity
func (c *Container) PingPostgres(ctx context.Context) error {
	db, err := c.GetDatabase()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// PingMongo checks MongoDB connectivity
func (c *Container) PingMongo(ctx context.Context) error {
	client, err := c.GetMongoClient()
	if err != nil {
		return err
	}
	return client.Ping(ctx, readpref.Primary())
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}
	c.cleanupFuncs = nil
	c.db = nil
	c.mongoClient = nil

	c.logger.Info("Container shutdown complete")
	return nil
}
