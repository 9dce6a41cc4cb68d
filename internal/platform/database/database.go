package database

import (
	"fmt"

	"fulfillmentservice/internal/domain"
	"fulfillmentservice/internal/outbox"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the connection pool and schema handling.
type Options struct {
	MaxOpenConns int
	AutoMigrate  bool
	LogLevel     logger.LogLevel
}

// Postgres returns the production dialector for dsn.
func Postgres(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

// Open connects through dialector and optionally migrates the schema.
func Open(dialector gorm.Dialector, opts Options) (*gorm.DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Order{},
		&domain.OrderItem{},
		&domain.Inventory{},
		&domain.Shipping{},
		&domain.ShippingItem{},
		&outbox.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
