package intake

import "github.com/tphakala/storm-intake/internal/logger"

// GetLogger returns the intake package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("intake")
}
