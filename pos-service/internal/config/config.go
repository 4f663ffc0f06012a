package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	LogLevel string

	HTTP     HTTPConfig
	Catalog  CatalogConfig
	Orders   OrdersConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Cart     CartConfig
	Events   EventsConfig
}

type HTTPConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// CatalogConfig.Backend is "memory" or "mongo".
type CatalogConfig struct {
	Backend string
}

// OrdersConfig.Backend is "memory", "mongo" or "postgres".
type OrdersConfig struct {
	Backend string
}

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	MinPoolSize uint64
}

type PostgresConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

// RedisConfig with an empty Addr disables the cart mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CartTTL  time.Duration
}

// KafkaConfig with no brokers disables event export.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	QueueSize int
}

// PaymentConfig.Mode is "grpc" or "local".
type PaymentConfig struct {
	Mode               string
	Addr               string
	Timeout            time.Duration
	ApprovalPercent    int
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

type CheckoutConfig struct {
	PersistTimeout        time.Duration
	ValidationConcurrency int
}

type CartConfig struct {
	AbandonAfter  time.Duration
	SweepInterval time.Duration
}

type EventsConfig struct {
	SubscriberQueue   int
	HeartbeatInterval time.Duration
	// TopicIdleAfter is how long a merchant's topic may sit without
	// subscribers or events before it is dropped. Zero disables pruning.
	TopicIdleAfter time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("HTTP_REQUEST_TIMEOUT", "30s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("HTTP_MAX_BODY_BYTES", 1<<20)

	v.SetDefault("CATALOG_BACKEND", "memory")
	v.SetDefault("ORDERS_BACKEND", "memory")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "pos")
	v.SetDefault("MONGO_MAX_POOL_SIZE", 100)
	v.SetDefault("MONGO_MIN_POOL_SIZE", 10)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "pos")
	v.SetDefault("POSTGRES_PASSWORD", "pos")
	v.SetDefault("POSTGRES_DB", "pos")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MIGRATIONS_DIR", "./pos-service/migrations")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CART_TTL", "15m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "pos-events")
	v.SetDefault("KAFKA_QUEUE_SIZE", 1024)

	v.SetDefault("PAYMENT_MODE", "local")
	v.SetDefault("PAYMENT_SERVICE_ADDR", "localhost:50054")
	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_APPROVAL_PERCENT", 95)
	v.SetDefault("PAYMENT_BREAKER_FAILURES", 5)
	v.SetDefault("PAYMENT_BREAKER_OPEN_TIMEOUT", "30s")

	v.SetDefault("CHECKOUT_PERSIST_TIMEOUT", "5s")
	v.SetDefault("CHECKOUT_VALIDATION_CONCURRENCY", 8)

	v.SetDefault("CART_ABANDON_AFTER", "2h")
	v.SetDefault("CART_SWEEP_INTERVAL", "1m")

	v.SetDefault("EVENTS_SUBSCRIBER_QUEUE", 64)
	v.SetDefault("EVENTS_HEARTBEAT_INTERVAL", "15s")
	v.SetDefault("EVENTS_TOPIC_IDLE_AFTER", "1h")
}

// Load reads defaults, then the optional config file (yaml, json or .env),
// then environment variables, each overriding the previous.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Port:            v.GetString("HTTP_PORT"),
			RequestTimeout:  v.GetDuration("HTTP_REQUEST_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
			MaxBodyBytes:    v.GetInt64("HTTP_MAX_BODY_BYTES"),
		},
		Catalog: CatalogConfig{Backend: strings.ToLower(v.GetString("CATALOG_BACKEND"))},
		Orders:  OrdersConfig{Backend: strings.ToLower(v.GetString("ORDERS_BACKEND"))},
		Mongo: MongoConfig{
			URI:         v.GetString("MONGO_URI"),
			Database:    v.GetString("MONGO_DATABASE"),
			MaxPoolSize: v.GetUint64("MONGO_MAX_POOL_SIZE"),
			MinPoolSize: v.GetUint64("MONGO_MIN_POOL_SIZE"),
		},
		Postgres: PostgresConfig{
			Host:          v.GetString("POSTGRES_HOST"),
			Port:          v.GetInt("POSTGRES_PORT"),
			User:          v.GetString("POSTGRES_USER"),
			Password:      v.GetString("POSTGRES_PASSWORD"),
			DBName:        v.GetString("POSTGRES_DB"),
			SSLMode:       v.GetString("POSTGRES_SSLMODE"),
			MigrationsDir: v.GetString("POSTGRES_MIGRATIONS_DIR"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CartTTL:  v.GetDuration("REDIS_CART_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(v.GetString("KAFKA_BROKERS")),
			Topic:     v.GetString("KAFKA_TOPIC"),
			QueueSize: v.GetInt("KAFKA_QUEUE_SIZE"),
		},
		Payment: PaymentConfig{
			Mode:               strings.ToLower(v.GetString("PAYMENT_MODE")),
			Addr:               v.GetString("PAYMENT_SERVICE_ADDR"),
			Timeout:            v.GetDuration("PAYMENT_TIMEOUT"),
			ApprovalPercent:    v.GetInt("PAYMENT_APPROVAL_PERCENT"),
			BreakerFailures:    v.GetUint32("PAYMENT_BREAKER_FAILURES"),
			BreakerOpenTimeout: v.GetDuration("PAYMENT_BREAKER_OPEN_TIMEOUT"),
		},
		Checkout: CheckoutConfig{
			PersistTimeout:        v.GetDuration("CHECKOUT_PERSIST_TIMEOUT"),
			ValidationConcurrency: v.GetInt("CHECKOUT_VALIDATION_CONCURRENCY"),
		},
		Cart: CartConfig{
			AbandonAfter:  v.GetDuration("CART_ABANDON_AFTER"),
			SweepInterval: v.GetDuration("CART_SWEEP_INTERVAL"),
		},
		Events: EventsConfig{
			SubscriberQueue:   v.GetInt("EVENTS_SUBSCRIBER_QUEUE"),
			HeartbeatInterval: v.GetDuration("EVENTS_HEARTBEAT_INTERVAL"),
			TopicIdleAfter:    v.GetDuration("EVENTS_TOPIC_IDLE_AFTER"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Catalog.Backend {
	case "memory", "mongo":
	default:
		errs = append(errs, fmt.Errorf("CATALOG_BACKEND must be memory or mongo, got %q", c.Catalog.Backend))
	}
	switch c.Orders.Backend {
	case "memory", "mongo", "postgres":
	default:
		errs = append(errs, fmt.Errorf("ORDERS_BACKEND must be memory, mongo or postgres, got %q", c.Orders.Backend))
	}
	switch c.Payment.Mode {
	case "local", "grpc":
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_MODE must be local or grpc, got %q", c.Payment.Mode))
	}
	if c.Payment.Timeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_TIMEOUT must be positive"))
	}
	if c.Checkout.PersistTimeout <= 0 {
		errs = append(errs, errors.New("CHECKOUT_PERSIST_TIMEOUT must be positive"))
	}
	if c.Payment.ApprovalPercent < 0 || c.Payment.ApprovalPercent > 100 {
		errs = append(errs, errors.New("PAYMENT_APPROVAL_PERCENT must be between 0 and 100"))
	}
	if c.UsesMongo() && c.Mongo.MinPoolSize > c.Mongo.MaxPoolSize {
		errs = append(errs, errors.New("MONGO_MIN_POOL_SIZE must not exceed MONGO_MAX_POOL_SIZE"))
	}
	return errors.Join(errs...)
}

// UsesMongo reports whether any backend needs a MongoDB connection.
func (c *Config) UsesMongo() bool {
	return c.Catalog.Backend == "mongo" || c.Orders.Backend == "mongo"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
