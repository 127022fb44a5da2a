// Package httpcontroller serves the server rendered pages: the public
// defect report form and the admin views behind basic auth.
package httpcontroller

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"

	"github.com/tphakala/storm-intake/frontend"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/datastore"
	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/observability/metrics"
)

// SettingsUpdater validates, applies and persists new intake settings
type SettingsUpdater func(conf.IntakeSettings) (*conf.Settings, error)

// Handlers contains the page handlers and their dependencies
type Handlers struct {
	repo          datastore.Repository
	settings      func() *conf.Settings
	updateIntake  SettingsUpdater
	sessions      sessions.Store
	renderer      *TemplateRenderer
	httpMetrics   *metrics.HTTPMetrics
	intakeMetrics *metrics.IntakeMetrics
	mediaFs       afero.Fs
	views         fs.FS
	assets        fs.FS
}

// Option configures Handlers
type Option func(*Handlers)

// WithSettingsUpdater sets the function the settings page saves through
func WithSettingsUpdater(fn SettingsUpdater) Option {
	return func(h *Handlers) {
		h.updateIntake = fn
	}
}

// WithSessionStore sets the store used for admin flash messages
func WithSessionStore(store sessions.Store) Option {
	return func(h *Handlers) {
		h.sessions = store
	}
}

// WithHTTPMetrics enables auth and template render metrics
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(h *Handlers) {
		h.httpMetrics = m
	}
}

// WithIntakeMetrics enables schema repair metrics
func WithIntakeMetrics(m *metrics.IntakeMetrics) Option {
	return func(h *Handlers) {
		h.intakeMetrics = m
	}
}

// WithMediaFs serves stored attachments under /media. Without it the
// route is not registered.
func WithMediaFs(fsys afero.Fs) Option {
	return func(h *Handlers) {
		h.mediaFs = fsys
	}
}

// WithViews replaces the embedded views
func WithViews(views fs.FS) Option {
	return func(h *Handlers) {
		h.views = views
	}
}

// New creates the page handlers. The settings function is consulted on
// every request so admin edits apply without a restart.
func New(repo datastore.Repository, settings func() *conf.Settings, opts ...Option) (*Handlers, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if settings == nil || settings() == nil {
		return nil, fmt.Errorf("settings are required")
	}

	h := &Handlers{
		repo:         repo,
		settings:     settings,
		updateIntake: conf.UpdateIntake,
		views:        frontend.ViewsFS,
		assets:       frontend.AssetsFS,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.sessions == nil {
		h.sessions = sessions.NewCookieStore([]byte(conf.GenerateRandomSecret()))
	}

	renderer, err := NewTemplateRenderer(h.views)
	if err != nil {
		return nil, err
	}
	h.renderer = renderer

	return h, nil
}

// RegisterRoutes installs the renderer, the error handler and all page routes
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	e.Renderer = h.renderer
	e.HTTPErrorHandler = h.HTTPErrorHandler(e)

	e.GET("/", h.WithErrorHandling(h.FormPage))
	e.StaticFS("/assets", h.assets)

	if h.mediaFs != nil {
		e.GET("/media/*", h.mediaHandler())
	}

	admin := e.Group("/admin", h.BasicAuth())
	admin.GET("", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/admin/submissions")
	})
	admin.GET("/submissions", h.WithErrorHandling(h.ListSubmissions))
	admin.GET("/submissions/:id", h.WithErrorHandling(h.SubmissionDetail))
	admin.GET("/settings", h.WithErrorHandling(h.SettingsPage))
	admin.POST("/settings", h.WithErrorHandling(h.SaveSettings))
	admin.POST("/repair", h.WithErrorHandling(h.RepairSchema))
}

// HandlerError is an error with an HTTP status code and a user facing message
type HandlerError struct {
	Err     error
	Message string
	Code    int
}

// Error implements the error interface for HandlerError.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// HandleError renders err as an error page
func (h *Handlers) HandleError(err error, c echo.Context) error {
	var he *HandlerError
	var echoHTTPError *echo.HTTPError
	var enhancedErr *errors.EnhancedError

	switch {
	case errors.As(err, &he):
		// already carries code and message
	case errors.As(err, &echoHTTPError):
		he = &HandlerError{
			Err:     echoHTTPError,
			Message: fmt.Sprintf("%v", echoHTTPError.Message),
			Code:    echoHTTPError.Code,
		}
	case errors.As(err, &enhancedErr):
		code := mapCategoryToHTTPStatus(enhancedErr.Category)
		he = &HandlerError{
			Err:     enhancedErr,
			Message: http.StatusText(code),
			Code:    code,
		}
	default:
		he = &HandlerError{
			Err:     err,
			Message: "An unexpected error occurred",
			Code:    http.StatusInternalServerError,
		}
	}

	if he.Code >= http.StatusInternalServerError {
		GetLogger().Error("page handler failed",
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", he.Code),
			logger.Error(he.Err))
	}

	if c.Response().Committed {
		return nil
	}

	data := ErrorPage{
		PageData: h.pageData(c, fmt.Sprintf("%d Error", he.Code), ""),
		Code:     he.Code,
		Message:  he.Message,
	}
	return h.render(c, he.Code, "error", data)
}

// mapCategoryToHTTPStatus maps error categories to HTTP status codes
func mapCategoryToHTTPStatus(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithErrorHandling wraps a handler so its errors render as pages
func (h *Handlers) WithErrorHandling(fn echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := fn(c); err != nil {
			return h.HandleError(err, c)
		}
		return nil
	}
}

// HTTPErrorHandler renders router and middleware errors as pages, leaving
// the JSON API and metrics paths to echo's default handler.
func (h *Handlers) HTTPErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/metrics" || c.Response().Committed {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}
		if renderErr := h.HandleError(err, c); renderErr != nil {
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}

// render renders a page and records render metrics
func (h *Handlers) render(c echo.Context, code int, name string, data any) error {
	start := time.Now()
	err := c.Render(code, name, data)
	if h.httpMetrics != nil {
		if err != nil {
			h.httpMetrics.RecordTemplateRenderError(name)
		} else {
			h.httpMetrics.RecordTemplateRender(name, time.Since(start).Seconds())
		}
	}
	return err
}
