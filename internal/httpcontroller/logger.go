package httpcontroller

import "github.com/tphakala/storm-intake/internal/logger"

// GetLogger returns the page controller logger
func GetLogger() logger.Logger {
	return logger.Global().Module("httpcontroller")
}
