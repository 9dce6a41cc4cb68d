// Package dbtest opens throwaway in-memory databases for store tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"fulfillmentservice/internal/platform/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter atomic.Int64

// Open returns a migrated SQLite database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:fulfillment-%d?mode=memory&cache=shared", counter.Add(1))
	db, err := database.Open(sqlite.Open(dsn), database.Options{
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
