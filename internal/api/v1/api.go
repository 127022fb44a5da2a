// internal/api/v1/api.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/intake"
	"github.com/tphakala/storm-intake/internal/logger"
)

// GetLogger returns the v1 API logger
func GetLogger() logger.Logger {
	return logger.Global().Module("api.v1")
}

// Submitter runs a submission attempt
type Submitter interface {
	Submit(ctx context.Context, req intake.Request) intake.Result
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller manages the v1 API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	service     Submitter
	db          Pinger
	maxFileSize int64
	startTime   time.Time

	submitMiddleware []echo.MiddlewareFunc
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMaxFileSize sets the single upload cap in bytes
func WithMaxFileSize(n int64) Option {
	return func(c *Controller) {
		c.maxFileSize = n
	}
}

// WithSubmitMiddleware adds middleware to the submission route only, e.g.
// the rate limiter
func WithSubmitMiddleware(mw ...echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.submitMiddleware = append(c.submitMiddleware, mw...)
	}
}

// New creates the controller and registers its routes under /api/v1
func New(e *echo.Echo, service Submitter, db Pinger, opts ...Option) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		service:   service,
		db:        db,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/challenge", c.GetChallenge)
	c.Group.POST("/submissions", c.SubmitReport, c.submitMiddleware...)
}

// ResponseData is the payload of the JSON envelope
type ResponseData struct {
	Message      string            `json:"message,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	SubmissionID int64             `json:"submission_id,omitempty"`
	CaseNumber   string            `json:"case_number,omitempty"`
}

// Response is the JSON envelope of every submission response
type Response struct {
	Success bool         `json:"success"`
	Data    ResponseData `json:"data"`
}

// MsgSecurityCheckFailed is returned when the anti-forgery token is rejected
const MsgSecurityCheckFailed = "Security check failed."

// MsgTooManyRequests is returned by the submission rate limiter
const MsgTooManyRequests = "Too many submissions. Please try again later."

// MsgTooLarge is returned when the request body exceeds the upload limit
const MsgTooLarge = "The upload is too large. Please send fewer or smaller files."

// msgInternalError is the envelope message of unexpected router errors
const msgInternalError = "Internal server error."

// Fail writes an error envelope with only a message
func Fail(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, Response{Data: ResponseData{Message: message}})
}

// CSRFErrorHandler renders anti-forgery failures as an envelope
func CSRFErrorHandler(_ error, ctx echo.Context) error {
	return Fail(ctx, http.StatusForbidden, MsgSecurityCheckFailed)
}

// HTTPErrorHandler renders router and middleware errors as an envelope
func HTTPErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := msgInternalError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
	}
	if code == http.StatusRequestEntityTooLarge {
		message = MsgTooLarge
	}
	if code >= http.StatusInternalServerError {
		GetLogger().Error("request failed",
			logger.String("path", ctx.Request().URL.Path),
			logger.Error(err))
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(code)
	} else {
		err = Fail(ctx, code, message)
	}
	if err != nil {
		GetLogger().Warn("failed to write error response", logger.Error(err))
	}
}

// RateLimitDenyHandler renders rate limit rejections as an envelope
func RateLimitDenyHandler(ctx echo.Context, _ string, _ error) error {
	return Fail(ctx, http.StatusTooManyRequests, MsgTooManyRequests)
}

// HealthCheck reports service and database status
func (c *Controller) HealthCheck(ctx echo.Context) error {
	uptime := time.Since(c.startTime)

	response := map[string]any{
		"status":          "healthy",
		"database_status": "connected",
		"uptime":          uptime.Round(time.Second).String(),
		"uptime_seconds":  uptime.Seconds(),
		"timestamp":       time.Now().Format(time.RFC3339),
	}

	code := http.StatusOK
	if c.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()
		if err := c.db.Ping(pingCtx); err != nil {
			GetLogger().Warn("health check database ping failed", logger.Error(err))
			response["status"] = "degraded"
			response["database_status"] = "disconnected"
			code = http.StatusServiceUnavailable
		}
	}

	return ctx.JSON(code, response)
}
