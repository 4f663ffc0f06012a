// Package storage opens the MongoDB connection shared by the catalog and the
// order repository.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	appName                = "pos-service"
	connectTimeout         = 10 * time.Second
	serverSelectionTimeout = 5 * time.Second
)

// Mongo is an open database handle. Close disconnects the underlying client.
type Mongo struct {
	DB *mongo.Database
}

func clientOptions(cfg config.MongoConfig) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(serverSelectionTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		opts.SetMinPoolSize(cfg.MinPoolSize)
	}
	return opts
}

// OpenMongo connects and pings the primary. A failed ping disconnects the
// client before returning.
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongo: database name is required")
	}
	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	m := &Mongo{DB: client.Database(cfg.Database)}
	if err := m.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return m, nil
}

// Ping doubles as the readiness check.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.DB.Client().Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.DB.Client().Disconnect(ctx)
}
