package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/storm-intake/internal/logger"
)

// RateLimitConfig configures per client IP rate limiting.
type RateLimitConfig struct {
	Rate      float64       // sustained requests per second
	Burst     int           // requests allowed above Rate
	ExpiresIn time.Duration // idle time before a client is forgotten

	// DenyHandler renders the rejection.
	DenyHandler func(c echo.Context, identifier string, err error) error
}

// NewRateLimiter limits requests per client IP with an in-memory token
// bucket store.
func NewRateLimiter(config RateLimitConfig) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(config.Rate),
		Burst:     config.Burst,
		ExpiresIn: config.ExpiresIn,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			GetLogger().Warn("rate limit exceeded",
				logger.String("ip", identifier),
				logger.String("path", c.Request().URL.Path))
			if config.DenyHandler != nil {
				return config.DenyHandler(c, identifier, err)
			}
			return echo.ErrTooManyRequests
		},
	})
}
