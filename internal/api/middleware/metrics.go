package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/observability/metrics"
)

// NewMetrics records request counts, durations and sizes per route pattern.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the error so the recorded status is final
				c.Error(err)
			}

			method := c.Request().Method
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			status := c.Response().Status

			m.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)

			switch {
			case status >= 500:
				m.RecordHTTPRequestError(method, path, "server")
			case status >= 400:
				m.RecordHTTPRequestError(method, path, "client")
			}

			return nil
		}
	}
}
