package main

import (
	"context"
	"fmt"

	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/config"
	"github.com/fjod/go_pos/pos-service/internal/orders"
	"github.com/fjod/go_pos/pos-service/internal/storage"
	"go.uber.org/zap"
)

func postgresCredentials(cfg *config.Config) *orders.Credentials {
	return &orders.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		SSLMode:           cfg.Postgres.SSLMode,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
}

func migrateOrders(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	creds := postgresCredentials(cfg)
	repo, err := orders.NewPostgresRepository(ctx, creds)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info("migrations applied",
		zap.String("host", cfg.Postgres.Host),
		zap.String("db", cfg.Postgres.DBName),
		zap.String("dir", cfg.Postgres.MigrationsDir))
	return nil
}

// seedCatalog upserts the demo products, so running it twice resets stock.
func seedCatalog(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	m, err := storage.OpenMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer m.Close(context.Background())

	store := catalog.NewMongoStore(m.DB)
	if err := store.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create catalog indexes: %w", err)
	}
	for _, p := range catalog.DemoProducts() {
		if err := store.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed %s: %w", p.Barcode, err)
		}
		log.Info("product seeded",
			zap.String("barcode", p.Barcode),
			zap.String("price", p.UnitPrice.StringFixed(2)),
			zap.Int("stock", p.StockQuantity))
	}
	return nil
}
