// Package middleware provides HTTP middleware for the storm-intake server.
package middleware

import "github.com/tphakala/storm-intake/internal/logger"

// GetLogger returns the middleware package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("api.middleware")
}
