package metrics

import "github.com/tphakala/storm-intake/internal/logger"

// GetLogger returns the metrics package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
