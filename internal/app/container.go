package app

import (
	"context"
	"errors"
	"fmt"

	"fulfillmentservice/internal/config"
	"fulfillmentservice/internal/platform/database"
	"fulfillmentservice/internal/platform/kafka"
	"fulfillmentservice/internal/platform/lock"
	"fulfillmentservice/internal/platform/observability"
	"fulfillmentservice/internal/platform/resilience"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds expensive-to-create singleton resources and dependencies
type Container struct {
	config            *config.Config
	logger            observability.Logger
	tracer            observability.Tracer
	messageProducer   kafka.Producer
	publisher         *kafka.Publisher
	redis             *redis.Client
	locker            *lock.RedisClient
	db                *gorm.DB
	consumers         []kafka.Consumer
	otelLogShutdown   func(context.Context) error
	otelTraceShutdown func(context.Context) error
}

// NewContainer creates and initializes all infrastructure components
func NewContainer(ctx context.Context) (*Container, error) {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	container := &Container{
		config: cfg,
	}

	// Bootstrap logger until the OTel bridge is available
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	container.logger = logger

	// Setup OpenTelemetry and Kafka
	if err := container.setupObservability(ctx); err != nil {
		container.Shutdown(context.Background())
		return nil, err
	}

	if err := container.setupRedis(ctx); err != nil {
		container.Shutdown(context.Background())
		return nil, err
	}

	if err := container.setupDatabase(); err != nil {
		container.Shutdown(context.Background())
		return nil, err
	}

	return container, nil
}

// setupObservability configures OpenTelemetry logging and tracing
func (c *Container) setupObservability(ctx context.Context) error {
	// Setup logging SDK
	otelLogShutdown, err := observability.SetupLoggingSDK(ctx, c.config)
	c.logSetupResult("logging", err)
	c.otelLogShutdown = otelLogShutdown

	// Setup tracing SDK
	sdkProvider, otelTraceShutdown, err := observability.SetupTracingSDK(ctx, c.config)
	c.logSetupResult("tracing", err)
	c.otelTraceShutdown = otelTraceShutdown

	var tp trace.TracerProvider = otel.GetTracerProvider()
	if sdkProvider != nil {
		tp = sdkProvider
	}

	// Re-initialize logger with OTel bridge
	c.logger = observability.NewLogger(config.ServiceName)
	c.logger.Info("Logger re-initialized with OpenTelemetry bridge")

	c.tracer = otel.Tracer(config.ServiceName)

	// Setup Kafka with the TracerProvider
	return c.setupKafkaWithTracer(tp)
}

func (c *Container) logSetupResult(signal string, err error) {
	switch {
	case errors.Is(err, observability.ErrExportDisabled):
		c.logger.Info("OpenTelemetry export disabled", zap.String("signal", signal))
	case err != nil:
		c.logger.Error("Failed to setup OpenTelemetry", zap.String("signal", signal), zap.Error(err))
	}
}

// setupKafkaWithTracer initializes the traced producer and the publisher on top of it
func (c *Container) setupKafkaWithTracer(tp trace.TracerProvider) error {
	writer, err := kafka.NewTracedWriter(c.config.KafkaBroker, tp)
	if err != nil {
		return fmt.Errorf("failed to create kafka writer: %w", err)
	}
	c.messageProducer = writer

	breaker := resilience.NewCircuitBreaker("Kafka", config.ServiceName, c.logger)
	c.publisher = kafka.NewPublisher(writer, breaker, c.logger)
	return nil
}

func (c *Container) setupRedis(ctx context.Context) error {
	c.redis = redis.NewClient(&redis.Options{
		Addr:     c.config.RedisAddr,
		Password: c.config.RedisPassword,
	})
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", c.config.RedisAddr, err)
	}

	// Completed markers are kept indefinitely.
	c.locker = lock.NewRedisClient(c.redis, c.config.LockLease, 0)
	c.logger.Info("🔐 Connected to lock store", zap.String("addr", c.config.RedisAddr))
	return nil
}

func (c *Container) setupDatabase() error {
	db, err := database.Open(database.Postgres(c.config.DatabaseDSN), database.Options{
		AutoMigrate: c.config.AutoMigrate,
	})
	if err != nil {
		return err
	}
	c.db = db
	c.logger.Info("🗄️ Connected to record store", zap.Bool("auto_migrate", c.config.AutoMigrate))
	return nil
}

// NewConsumer creates a group reader owned by the container and closed on shutdown.
func (c *Container) NewConsumer(topic, groupID string) kafka.Consumer {
	reader := kafka.NewGroupReader(c.config.KafkaBroker, topic, groupID)
	c.consumers = append(c.consumers, reader)
	return reader
}

// Shutdown gracefully shuts down all infrastructure components
func (c *Container) Shutdown(ctx context.Context) {
	c.logger.Info("Shutting down infrastructure...")

	// Close Kafka components
	for _, consumer := range c.consumers {
		if err := consumer.Close(); err != nil {
			c.logger.Error("Failed to close message consumer", zap.Error(err))
		}
	}

	if c.messageProducer != nil {
		if err := c.messageProducer.Close(); err != nil {
			c.logger.Error("Failed to close message producer", zap.Error(err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if c.db != nil {
		if err := database.Close(c.db); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
		}
	}

	// Shutdown OpenTelemetry
	if c.otelTraceShutdown != nil {
		if err := c.otelTraceShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel tracing", zap.Error(err))
		}
	}

	if c.otelLogShutdown != nil {
		if err := c.otelLogShutdown(ctx); err != nil {
			c.logger.Error("Failed to shutdown OTel logging", zap.Error(err))
		}
	}

	c.logger.Info("Infrastructure shutdown complete")

	// Sync logger
	if err := c.logger.Sync(); err != nil {
		// Can't log this error since logger might be closed
		fmt.Printf("Failed to sync logger: %v\n", err)
	}
}

// Getters for accessing infrastructure components
func (c *Container) Config() *config.Config       { return c.config }
func (c *Container) Logger() observability.Logger { return c.logger }
func (c *Container) Tracer() observability.Tracer { return c.tracer }
func (c *Container) Publisher() *kafka.Publisher  { return c.publisher }
func (c *Container) Locker() *lock.RedisClient    { return c.locker }
func (c *Container) DB() *gorm.DB                 { return c.db }
