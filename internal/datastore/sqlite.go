package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open opens the SQLite database file, creating its directory if needed
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return fmt.Errorf("sqlite path is not configured")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenSQLite(path)
	if err != nil {
		return err
	}

	store.DataStore = *NewWithDB(db)
	GetLogger().Info("opened sqlite database", logger.String("path", path))
	return nil
}

// OpenSQLite opens a SQLite database with foreign keys and WAL enabled.
// Pass ":memory:" for a throwaway database.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive across calls.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQLite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}
