package database

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenLocal opens the device-local SQLite store at path.
// An empty path or ":memory:" gives a private in-memory database.
func OpenLocal(path string) (*DB, error) {
	inMemory := path == "" || path == ":memory:"
	dsn := path
	if inMemory {
		// Named so every pooled connection sees the same database
		dsn = fmt.Sprintf("file:reg44-%s?mode=memory&cache=shared", uuid.NewString())
	} else if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if !inMemory {
		zap.L().Info("💾 Local store opened", zap.String("path", path))
	}
	return &DB{DB: db}, nil
}

// Wrap adapts an existing gorm handle, mainly for tests
func Wrap(db *gorm.DB) *DB {
	return &DB{DB: db}
}
