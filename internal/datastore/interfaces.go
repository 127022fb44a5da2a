// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

// Repository is the append-only store of defect reports
type Repository interface {
	// Insert stores a new report and returns its assigned id
	Insert(ctx context.Context, s *submission.Submission) (int64, error)
	// Get returns one report, or a not-found error
	Get(ctx context.Context, id int64) (*submission.Submission, error)
	// List returns reports newest first
	List(ctx context.Context, limit, offset int) ([]*submission.Submission, error)
	// Count returns the number of stored reports
	Count(ctx context.Context) (int64, error)
	// EnsureSchema creates the table when missing and adds missing columns
	EnsureSchema(ctx context.Context) error
}

// Interface is a Repository with a connection lifecycle
type Interface interface {
	Repository
	Open() error
	Ping(ctx context.Context) error
	Close() error
}

const (
	detailCacheTTL     = 10 * time.Minute
	detailCacheCleanup = 30 * time.Minute
	slowQueryThreshold = 200 * time.Millisecond
)

// DataStore implements Repository on a gorm database
type DataStore struct {
	DB     *gorm.DB
	detail *cache.Cache // reports are immutable, so detail lookups are cached

	lookups singleflight.Group
}

// GetLogger returns the datastore package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// gormConfig returns the shared gorm configuration
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold),
	}
}

// New creates the store selected by configuration. Open must be called
// before use.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return &SQLiteStore{Settings: settings}
	}
}

// NewWithDB wraps an already open gorm database
func NewWithDB(db *gorm.DB) *DataStore {
	return &DataStore{
		DB:     db,
		detail: cache.New(detailCacheTTL, detailCacheCleanup),
	}
}
