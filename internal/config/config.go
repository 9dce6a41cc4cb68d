package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Service configuration constants
const (
	ServiceName    = "fulfillment-service"
	ServiceVersion = "0.1.0"
)

// Kafka topics
const (
	OrderPlacedTopic           = "OrderPlaced"
	StockReservedTopic         = "StockReserved"
	OutOfStockTopic            = "OutOfStock"
	OrderReadyForShippingTopic = "OrderReadyForShipping"
	ShippingStatusTopic        = "ShippingStatus"
)

// Kafka consumer groups and writer tuning
const (
	InventoryGroupID = "order-placed-consumer"
	OrderGroupID     = "stock-reserved-consumer"
	ShippingGroupID  = "order-ready-for-shipping-consumer"
	BatchTimeout     = 10 * time.Millisecond
	BatchSize        = 100
)

// OpenTelemetry configuration constants
const (
	LogsPath      = "/otlp/v1/logs"   // Grafana Cloud OTLP path
	TracesPath    = "/otlp/v1/traces" // Grafana Cloud OTLP path
	ExportTimeout = 30 * time.Second
	MaxQueueSize  = 2048
)

// Roles a process can run. A single binary hosts any subset of them.
const (
	RoleAPI       = "api"
	RoleInventory = "inventory"
	RoleOrder     = "order"
	RoleShipping  = "shipping"
	RoleRelay     = "relay"
)

var allRoles = []string{RoleAPI, RoleInventory, RoleOrder, RoleShipping, RoleRelay}

// Config holds environment-specific configuration
type Config struct {
	KafkaBroker    string
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	HTTPAddr       string
	OtelEndpoint   string
	OtelAuthHeader string

	// LockLease bounds how long a "processing" marker blocks redelivery.
	LockLease           time.Duration
	ConsumerConcurrency int
	OutboxInterval      time.Duration
	AutoMigrate         bool
	Roles               []string
}

// LoadConfig loads configuration from environment variables with validation
func LoadConfig() (*Config, error) {
	config := &Config{
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		OtelEndpoint:   os.Getenv("OTEL_ENDPOINT"),
		OtelAuthHeader: os.Getenv("OTEL_AUTH_HEADER"),
	}

	if config.KafkaBroker == "" {
		return nil, fmt.Errorf("KAFKA_BROKER environment variable is required")
	}
	if config.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable is required")
	}
	if config.OtelEndpoint != "" && config.OtelAuthHeader == "" {
		return nil, fmt.Errorf("OTEL_AUTH_HEADER environment variable is required when OTEL_ENDPOINT is set")
	}

	var err error
	if config.LockLease, err = durationEnv("LOCK_LEASE", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.OutboxInterval, err = durationEnv("OUTBOX_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	concurrency := getEnv("CONSUMER_CONCURRENCY", "3")
	config.ConsumerConcurrency, err = strconv.Atoi(concurrency)
	if err != nil || config.ConsumerConcurrency < 1 {
		return nil, fmt.Errorf("CONSUMER_CONCURRENCY must be a positive integer, got %q", concurrency)
	}

	config.AutoMigrate, err = strconv.ParseBool(getEnv("AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("AUTO_MIGRATE: %w", err)
	}

	if config.Roles, err = parseRoles(getEnv("SERVICE_ROLES", strings.Join(allRoles, ","))); err != nil {
		return nil, err
	}

	return config, nil
}

// HasRole reports whether this process should run the given role.
func (c *Config) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func parseRoles(raw string) ([]string, error) {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		role := strings.TrimSpace(strings.ToLower(part))
		if role == "" {
			continue
		}
		known := false
		for _, r := range allRoles {
			if r == role {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown role %q in SERVICE_ROLES", role)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("SERVICE_ROLES must name at least one role")
	}
	return roles, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
