// Package api provides the HTTP server infrastructure for storm-intake.
// The JSON endpoints live in the v1 subpackage and the HTML pages in
// httpcontroller.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "64M"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // listen address, e.g. ":8080"

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit   string // whole request body cap, e.g. "64M"
	MaxFileSize int64  // single upload part cap in bytes, 0 disables the check
	RateLimit   conf.RateLimitSettings

	SecureCookies bool
	Debug         bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.MaxUploadSize != "" {
		cfg.BodyLimit = settings.WebServer.MaxUploadSize
	}
	cfg.MaxFileSize = settings.MaxFileSizeBytes()
	cfg.RateLimit = settings.WebServer.RateLimit
	cfg.SecureCookies = settings.Security.SecureCookies
	cfg.Debug = settings.WebServer.Debug || settings.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := conf.ParseByteSize(c.BodyLimit); err != nil {
		return fmt.Errorf("invalid body limit %q: %w", c.BodyLimit, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit needs a positive rate and a burst of at least 1")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, body_limit=%s, rate_limit=%v, debug=%v",
		c.Listen, c.BodyLimit, c.RateLimit.Enabled, c.Debug)
}
