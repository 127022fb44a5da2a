package observability

import (
	"fmt"

	"github.com/tphakala/storm-intake/internal/logger"
)

// handlerErrorLog forwards promhttp handler errors to the central logger
type handlerErrorLog struct {
	log logger.Logger
}

func newHandlerErrorLog() handlerErrorLog {
	return handlerErrorLog{log: logger.Global().Module("metrics")}
}

// Println implements promhttp.Logger
func (h handlerErrorLog) Println(v ...any) {
	h.log.Error("metrics handler error", logger.String("error", fmt.Sprint(v...)))
}
