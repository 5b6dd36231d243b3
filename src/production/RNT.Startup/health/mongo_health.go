package health

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
)

// ConnectMongoWithTimeout connects to MongoDB and verifies the
// connection within the timeout.
func ConnectMongoWithTimeout(cfg *config.Config, timeout time.Duration) (*mongo.Client, error) {
	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.Mongo.URI)
	clientOptions.SetServerSelectionTimeout(30 * time.Second)
	clientOptions.SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("unable to ping MongoDB: %v", err)
	}

	return client, nil
}
