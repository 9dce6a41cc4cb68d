package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	t.Setenv("DATABASE_DSN", "host=localhost user=postgres dbname=fulfillment")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LockLease != 5*time.Minute {
		t.Errorf("expected default lease 5m, got %s", cfg.LockLease)
	}
	if cfg.ConsumerConcurrency != 3 {
		t.Errorf("expected default concurrency 3, got %d", cfg.ConsumerConcurrency)
	}
	if !cfg.AutoMigrate {
		t.Error("expected AUTO_MIGRATE to default to true")
	}
	for _, role := range allRoles {
		if !cfg.HasRole(role) {
			t.Errorf("expected role %s to be enabled by default", role)
		}
	}
}

func TestLoadConfig_MissingBroker(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "")
	t.Setenv("DATABASE_DSN", "dsn")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing KAFKA_BROKER")
	}
}

func TestLoadConfig_OtelEndpointNeedsAuth(t *testing.T) {
	setRequired(t)
	t.Setenv("OTEL_ENDPOINT", "otlp.example.com")
	t.Setenv("OTEL_AUTH_HEADER", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when OTEL_AUTH_HEADER is missing")
	}
}

func TestLoadConfig_Roles(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVICE_ROLES", "inventory, Relay")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.HasRole(RoleInventory) || !cfg.HasRole(RoleRelay) {
		t.Errorf("expected inventory and relay roles, got %v", cfg.Roles)
	}
	if cfg.HasRole(RoleAPI) {
		t.Error("api role should not be enabled")
	}

	t.Setenv("SERVICE_ROLES", "billing")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	setRequired(t)

	t.Setenv("LOCK_LEASE", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid LOCK_LEASE")
	}
	t.Setenv("LOCK_LEASE", "")

	t.Setenv("CONSUMER_CONCURRENCY", "0")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for zero CONSUMER_CONCURRENCY")
	}
}
