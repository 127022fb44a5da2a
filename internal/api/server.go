package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/afero"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	v1 "github.com/tphakala/storm-intake/internal/api/v1"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/datastore"
	"github.com/tphakala/storm-intake/internal/httpcontroller"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/observability"
	"github.com/tphakala/storm-intake/internal/observability/metrics"
)

// Server is the HTTP server of storm-intake.
// It manages the Echo instance, middleware, and all HTTP routes.
type Server struct {
	echo   *echo.Echo
	config *Config

	// settings returns the current settings; admin edits replace them
	settings        func() *conf.Settings
	settingsUpdater httpcontroller.SettingsUpdater

	// Dependencies
	dataStore    datastore.Interface
	service      v1.Submitter
	metrics      *observability.Metrics
	mediaFs      afero.Fs
	sessionStore sessions.Store

	apiController *v1.Controller
	pages         *httpcontroller.Handlers

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithDataStore sets the datastore for the server.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithSubmitter sets the submission service.
func WithSubmitter(svc v1.Submitter) ServerOption {
	return func(s *Server) {
		s.service = svc
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMediaFs serves the local storage backend under /media.
func WithMediaFs(fs afero.Fs) ServerOption {
	return func(s *Server) {
		s.mediaFs = fs
	}
}

// WithSettingsSource replaces conf.GetSettings as the settings source.
func WithSettingsSource(fn func() *conf.Settings) ServerOption {
	return func(s *Server) {
		s.settings = fn
	}
}

// WithSettingsUpdater replaces conf.UpdateIntake for the admin settings page.
func WithSettingsUpdater(fn httpcontroller.SettingsUpdater) ServerOption {
	return func(s *Server) {
		s.settingsUpdater = fn
	}
}

// WithSessionStore replaces the cookie session store.
func WithSessionStore(store sessions.Store) ServerOption {
	return func(s *Server) {
		s.sessionStore = store
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:          config,
		settings:        conf.GetSettings,
		settingsUpdater: conf.UpdateIntake,
		startTime:       time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.settings() == nil {
		s.settings = func() *conf.Settings { return settings }
	}
	if s.dataStore == nil {
		return nil, fmt.Errorf("datastore is required")
	}
	if s.service == nil {
		return nil, fmt.Errorf("submission service is required")
	}
	if s.sessionStore == nil {
		s.sessionStore = newCookieStore(settings.Security)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout
	if config.Debug {
		s.echo.Debug = true
		s.echo.Logger.SetLevel(log.DEBUG)
	} else {
		s.echo.Logger.SetLevel(log.WARN)
	}

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	GetLogger().Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("rate_limit", config.RateLimit.Enabled),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// newCookieStore creates the admin session store. Sessions only carry
// flash messages.
func newCookieStore(sec conf.SecuritySettings) *sessions.CookieStore {
	secret := sec.SessionSecret
	if secret == "" {
		GetLogger().Warn("no session secret configured, admin sessions will not survive a restart")
		secret = conf.GenerateRandomSecret()
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/admin",
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   sec.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLogger(GetLogger().Module("access"), func(c echo.Context) bool {
		path := c.Request().URL.Path
		return path == "/metrics" || strings.HasPrefix(path, "/assets/")
	}))

	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	s.echo.Use(mw.NewSecureHeaders(mw.DefaultSecurityConfig()))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewMultipartParser())
	s.echo.Use(mw.NewCSRF(&mw.CSRFConfig{
		CookieSecure: s.config.SecureCookies,
		ErrorHandler: func(err error, c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/api/") {
				return v1.CSRFErrorHandler(err, c)
			}
			return echo.NewHTTPError(http.StatusForbidden, v1.MsgSecurityCheckFailed)
		},
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	var apiOpts []v1.Option
	apiOpts = append(apiOpts, v1.WithMaxFileSize(s.config.MaxFileSize))
	if s.config.RateLimit.Enabled {
		apiOpts = append(apiOpts, v1.WithSubmitMiddleware(mw.NewRateLimiter(mw.RateLimitConfig{
			Rate:        s.config.RateLimit.Rate,
			Burst:       s.config.RateLimit.Burst,
			ExpiresIn:   s.config.RateLimit.ExpiresIn,
			DenyHandler: v1.RateLimitDenyHandler,
		})))
	}
	s.apiController = v1.New(s.echo, s.service, s.dataStore, apiOpts...)

	var httpMetrics *metrics.HTTPMetrics
	var intakeMetrics *metrics.IntakeMetrics
	if s.metrics != nil {
		httpMetrics = s.metrics.HTTP
		intakeMetrics = s.metrics.Intake
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	pages, err := httpcontroller.New(s.dataStore, s.settings,
		httpcontroller.WithSettingsUpdater(s.settingsUpdater),
		httpcontroller.WithSessionStore(s.sessionStore),
		httpcontroller.WithHTTPMetrics(httpMetrics),
		httpcontroller.WithIntakeMetrics(intakeMetrics),
		httpcontroller.WithMediaFs(s.mediaFs),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize pages: %w", err)
	}
	pages.RegisterRoutes(s.echo)
	s.pages = pages

	pageErrors := s.echo.HTTPErrorHandler
	s.echo.HTTPErrorHandler = func(err error, c echo.Context) {
		if strings.HasPrefix(c.Request().URL.Path, "/api/") {
			v1.HTTPErrorHandler(err, c)
			return
		}
		pageErrors(err, c)
	}

	return nil
}

// Start begins serving HTTP requests in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			GetLogger().Error("server error", logger.Error(err))
		}
	}()
}

// startBlocking serves until the server is shut down.
func (s *Server) startBlocking() error {
	GetLogger().Info("starting HTTP server", logger.String("address", s.config.Listen))

	if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown starts the server and blocks until SIGINT or
// SIGTERM, then shuts it down.
func (s *Server) StartWithGracefulShutdown(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.startBlocking()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	GetLogger().Info("shutdown signal received, initiating graceful shutdown")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		GetLogger().Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	GetLogger().Info("server shutdown complete",
		logger.Duration("uptime", time.Since(s.startTime)))
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
