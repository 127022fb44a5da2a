// Package conf provides configuration management for storm-intake.
package conf

import "github.com/tphakala/storm-intake/internal/logger"

// GetLogger returns the config package logger. It is resolved on each call
// since the central logger is installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
