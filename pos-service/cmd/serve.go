package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/go_pos/payment-service/pkg/api"
	"github.com/fjod/go_pos/pkg/circuitbreaker"
	"github.com/fjod/go_pos/pkg/metrics"
	"github.com/fjod/go_pos/pos-service/internal/analytics"
	"github.com/fjod/go_pos/pos-service/internal/cache"
	"github.com/fjod/go_pos/pos-service/internal/cart"
	"github.com/fjod/go_pos/pos-service/internal/catalog"
	"github.com/fjod/go_pos/pos-service/internal/checkout"
	"github.com/fjod/go_pos/pos-service/internal/config"
	"github.com/fjod/go_pos/pos-service/internal/events"
	poshttp "github.com/fjod/go_pos/pos-service/internal/http"
	"github.com/fjod/go_pos/pos-service/internal/orders"
	"github.com/fjod/go_pos/pos-service/internal/payment"
	"github.com/fjod/go_pos/pos-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// app owns every long-lived resource of a serve run; close releases them in
// reverse order of acquisition.
type app struct {
	log     *zap.Logger
	closers []func()
	checks  map[string]poshttp.HealthCheck
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	a := &app{log: log, checks: make(map[string]poshttp.HealthCheck)}
	defer a.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	posMetrics := metrics.NewPOSMetrics(reg)

	var mongoDB *mongo.Database
	if cfg.UsesMongo() {
		m, err := storage.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		mongoDB = m.DB
		a.onClose(func() { _ = m.Close(context.Background()) })
		a.checks["mongo"] = m.Ping
		log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	}

	stock, err := a.catalog(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}
	repo, err := a.orders(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}

	broadcaster := a.broadcaster(cfg, posMetrics)

	cartOpts := []cart.Option{
		cart.WithPublisher(broadcaster),
		cart.WithLogger(log.Named("cart")),
		cart.WithAbandonment(cfg.Cart.AbandonAfter, cfg.Cart.SweepInterval),
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("redis connection failed: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		cartOpts = append(cartOpts, cart.WithCache(cache.NewRedisCache(client, cfg.Redis.CartTTL)))
		log.Info("cart cache enabled", zap.String("addr", cfg.Redis.Addr))
	}
	carts := cart.NewStore(stock, cartOpts...)
	a.onClose(carts.Close)

	processor, err := a.payments(cfg)
	if err != nil {
		return err
	}

	agg := analytics.NewAggregator(posMetrics)
	engine := checkout.NewEngine(carts, stock, processor, repo, agg, checkout.Config{
		PaymentTimeout:        cfg.Payment.Timeout,
		PersistTimeout:        cfg.Checkout.PersistTimeout,
		ValidationConcurrency: cfg.Checkout.ValidationConcurrency,
	}, log.Named("checkout")).WithObserver(posMetrics)

	handler := poshttp.NewHandler(poshttp.Deps{
		Carts:     carts,
		Checkout:  engine,
		Analytics: agg,
		Orders:    repo,
		Events:    broadcaster,
		Log:       log.Named("http"),
	}, cfg.HTTP.MaxBodyBytes, cfg.Events.HeartbeatInterval)

	router := poshttp.NewRouter(handler, poshttp.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Metrics:        metrics.NewServerMetrics(reg, "api"),
		MetricsHandler: metrics.Handler(reg),
		HealthChecks:   a.checks,
		Log:            log,
	})

	// No WriteTimeout: event streams stay open; other routes are bounded by
	// the router's request timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("pos service listening",
			zap.String("port", cfg.HTTP.Port),
			zap.String("catalog", cfg.Catalog.Backend),
			zap.String("orders", cfg.Orders.Backend),
			zap.String("payment", cfg.Payment.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down pos service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown did not complete", zap.Error(err))
	}
	log.Info("pos service stopped")
	return nil
}

func (a *app) catalog(ctx context.Context, cfg *config.Config, db *mongo.Database) (catalog.Store, error) {
	if cfg.Catalog.Backend != "mongo" {
		a.log.Info("using in-memory demo catalog")
		return catalog.NewMemoryStore(catalog.DemoProducts()...), nil
	}
	store := catalog.NewMongoStore(db)
	if err := store.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create catalog indexes: %w", err)
	}
	return store, nil
}

func (a *app) orders(ctx context.Context, cfg *config.Config, db *mongo.Database) (orders.Repository, error) {
	switch cfg.Orders.Backend {
	case "postgres":
		creds := postgresCredentials(cfg)
		repo, err := orders.NewPostgresRepository(ctx, creds)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = repo.Close() })
		if err := repo.RunMigrations(creds); err != nil {
			return nil, err
		}
		a.checks["postgres"] = repo.Ping
		a.log.Info("connected to Postgres", zap.String("host", cfg.Postgres.Host))
		return repo, nil
	case "mongo":
		repo := orders.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create order indexes: %w", err)
		}
		return repo, nil
	default:
		return orders.NewMemoryRepository(), nil
	}
}

// broadcaster fans events out to SSE subscribers and, when brokers are
// configured, to Kafka. The sink is drained before the process exits.
func (a *app) broadcaster(cfg *config.Config, m *metrics.POSMetrics) *events.Broadcaster {
	opts := []events.Option{
		events.WithQueueSize(cfg.Events.SubscriberQueue),
		events.WithLogger(a.log.Named("events")),
		events.WithDropHook(func(string) { m.EventDropped("subscriber") }),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink := events.NewKafkaSink(cfg.Kafka.Topic, cfg.Kafka.QueueSize, a.log.Named("kafka"), cfg.Kafka.Brokers...)
		sink.OnDrop(func() { m.EventDropped("kafka") })

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(ctx)
		}()
		a.onClose(func() {
			cancel()
			wg.Wait()
			if err := sink.Close(); err != nil {
				a.log.Warn("failed to close kafka writer", zap.Error(err))
			}
		})
		opts = append(opts, events.WithSink(sink))
		a.log.Info("kafka event export enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	b := events.NewBroadcaster(opts...)
	if idle := cfg.Events.TopicIdleAfter; idle > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		go b.PruneEvery(ctx, idle, idle/2)
		a.onClose(cancel)
	}
	return b
}

func (a *app) payments(cfg *config.Config) (payment.Processor, error) {
	if cfg.Payment.Mode != "grpc" {
		a.log.Info("using local payment processor", zap.Int("approval_percent", cfg.Payment.ApprovalPercent))
		return payment.LocalProcessor{ApprovalPercent: cfg.Payment.ApprovalPercent}, nil
	}

	conn, err := payment.Dial(cfg.Payment.Addr)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = conn.Close() })

	bc := circuitbreaker.DefaultConfig("payment-service")
	if cfg.Payment.BreakerFailures > 0 {
		bc.ConsecutiveFailures = cfg.Payment.BreakerFailures
	}
	if cfg.Payment.BreakerOpenTimeout > 0 {
		bc.OpenTimeout = cfg.Payment.BreakerOpenTimeout
	}
	a.log.Info("connected to payment service", zap.String("addr", cfg.Payment.Addr))
	return payment.NewGRPCProcessor(api.NewPaymentServiceClient(conn), bc, a.log.Named("payment")), nil
}
