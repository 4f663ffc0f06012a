package storage

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_pos/pos-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.MongoConfig{
		URI:         "mongodb://localhost:27017",
		Database:    "pos",
		MaxPoolSize: 20,
		MinPoolSize: 2,
	})

	require.NotNil(t, opts.AppName)
	assert.Equal(t, "pos-service", *opts.AppName)
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(2), *opts.MinPoolSize)
	require.NotNil(t, opts.ServerSelectionTimeout)
	assert.Equal(t, 5*time.Second, *opts.ServerSelectionTimeout)
}

func TestClientOptions_ZeroPoolKeepsDriverDefaults(t *testing.T) {
	opts := clientOptions(config.MongoConfig{URI: "mongodb://localhost:27017", Database: "pos"})
	assert.Nil(t, opts.MaxPoolSize)
	assert.Nil(t, opts.MinPoolSize)
}

func TestOpenMongo_Rejects(t *testing.T) {
	ctx := context.Background()

	_, err := OpenMongo(ctx, config.MongoConfig{URI: "mongodb://localhost:27017"})
	assert.ErrorContains(t, err, "database name is required")

	_, err = OpenMongo(ctx, config.MongoConfig{URI: "not-a-uri", Database: "pos"})
	assert.ErrorContains(t, err, "failed to connect to MongoDB")
}
