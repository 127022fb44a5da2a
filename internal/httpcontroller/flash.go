package httpcontroller

import (
	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/logger"
)

// adminSessionName is the cookie name of the admin session
const adminSessionName = "storm-admin"

// addFlash queues a message for the next admin page view
func (h *Handlers) addFlash(c echo.Context, message string) {
	// Get returns a fresh session when the cookie cannot be decoded
	sess, err := h.sessions.Get(c.Request(), adminSessionName)
	if err != nil {
		GetLogger().Debug("discarding unreadable admin session", logger.Error(err))
	}

	sess.AddFlash(message)
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		GetLogger().Warn("failed to save admin session", logger.Error(err))
	}
}

// popFlashes returns and clears the queued messages
func (h *Handlers) popFlashes(c echo.Context) []string {
	sess, err := h.sessions.Get(c.Request(), adminSessionName)
	if err != nil {
		return nil
	}

	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}

	flashes := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			flashes = append(flashes, msg)
		}
	}

	if err := sess.Save(c.Request(), c.Response()); err != nil {
		GetLogger().Warn("failed to save admin session", logger.Error(err))
	}
	return flashes
}
