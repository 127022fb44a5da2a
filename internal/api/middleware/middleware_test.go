package middleware

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/observability/metrics"
)

func TestIsSecureRequest(t *testing.T) {
	t.Parallel()

	plain := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.False(t, IsSecureRequest(plain))

	proxied := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	assert.True(t, IsSecureRequest(proxied))

	direct := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	direct.TLS = &tls.ConnectionState{}
	assert.True(t, IsSecureRequest(direct))
}

func TestDefaultCSRFSkipper(t *testing.T) {
	t.Parallel()

	e := echo.New()
	tests := []struct {
		path string
		skip bool
	}{
		{"/assets/js/form.js", true},
		{"/media/2026/01/a.jpg", true},
		{"/metrics", true},
		{"/api/v1/health", true},
		{"/api/v1/submissions", false},
		{"/admin/repair", false},
		{"/", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, tt.path, http.NoBody), httptest.NewRecorder())
			assert.Equal(t, tt.skip, DefaultCSRFSkipper(c))
		})
	}
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	t.Parallel()

	called := false
	e := echo.New()
	e.Use(NewCSRF(&CSRFConfig{
		ErrorHandler: func(err error, c echo.Context) error {
			called = true
			return c.String(http.StatusForbidden, "denied")
		},
	}))
	e.POST("/submit", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submit", http.NoBody))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, called)
}

func TestCSRFAcceptsHeaderToken(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewCSRF(nil))
	e.GET("/token", func(c echo.Context) error {
		token, err := EnsureCSRFToken(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, token)
	})
	e.POST("/submit", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Body.String()
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/submit", http.NoBody)
	req.Header.Set(CSRFHeader, token)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEnsureCSRFTokenReusesCookie(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	token, err := EnsureCSRFToken(c)
	require.NoError(t, err)
	assert.Equal(t, "existing-token", token)
	assert.Equal(t, "existing-token", c.Get(CSRFContextKey))
}

func TestGenerateCSRFTokenIsRandom(t *testing.T) {
	t.Parallel()

	a, err := GenerateCSRFToken()
	require.NoError(t, err)
	b, err := GenerateCSRFToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43) // 32 bytes, unpadded base64
}

func TestRateLimiterDenies(t *testing.T) {
	t.Parallel()

	e := echo.New()
	limited := NewRateLimiter(RateLimitConfig{
		Rate:      0.001,
		Burst:     2,
		ExpiresIn: time.Minute,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.String(http.StatusTooManyRequests, "slow down")
		},
	})
	e.POST("/submit", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limited)

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/submit", http.NoBody))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestIsBodyTooLarge(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBodyTooLarge(echo.ErrStatusRequestEntityTooLarge))
	assert.True(t, IsBodyTooLarge(fmt.Errorf("multipart: NextPart: %w", echo.ErrStatusRequestEntityTooLarge)))
	assert.True(t, IsBodyTooLarge(&http.MaxBytesError{Limit: 1}))
	assert.False(t, IsBodyTooLarge(echo.ErrBadRequest))
	assert.False(t, IsBodyTooLarge(io.ErrUnexpectedEOF))
}

func TestMultipartParser(t *testing.T) {
	t.Parallel()

	newEcho := func(parsed *bool) *echo.Echo {
		e := echo.New()
		e.Use(NewBodyLimit("1K"), NewMultipartParser())
		e.POST("/submit", func(c echo.Context) error {
			*parsed = c.Request().MultipartForm != nil
			return c.String(http.StatusOK, c.Request().FormValue("contact_name"))
		})
		return e
	}

	// chunked request: no Content-Length, so the limit trips while reading
	newRequest := func(t *testing.T, size int) *http.Request {
		t.Helper()
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("contact_name", "Jane"))
		fw, err := w.CreateFormFile("files[]", "a.jpg")
		require.NoError(t, err)
		_, err = fw.Write(bytes.Repeat([]byte("x"), size))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/submit", io.MultiReader(&buf))
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		return req
	}

	t.Run("small body is parsed before the handler", func(t *testing.T) {
		t.Parallel()
		var parsed bool
		e := newEcho(&parsed)
		req := newRequest(t, 16)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Jane", rec.Body.String())
		assert.True(t, parsed)
	})

	t.Run("body over the limit stops the chain", func(t *testing.T) {
		t.Parallel()
		var parsed bool
		e := newEcho(&parsed)
		req := newRequest(t, 4096)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.False(t, parsed)
	})

	t.Run("non multipart bodies pass through", func(t *testing.T) {
		t.Parallel()
		var parsed bool
		e := newEcho(&parsed)
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader("contact_name=Jane"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Jane", rec.Body.String())
	})
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewHTTPMetrics(registry)
	require.NoError(t, err)

	e := echo.New()
	e.Use(NewMetrics(m))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "fine") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest) })

	for _, path := range []string{"/ok", "/boom", "/bad"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	assert.Equal(t, 0.0, m.GetInFlightRequests())

	count, err := testutil.GatherAndCount(registry, "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	expected := `
# HELP http_request_errors_total Total number of HTTP request errors
# TYPE http_request_errors_total counter
http_request_errors_total{error_type="client",method="GET",path="/bad"} 1
http_request_errors_total{error_type="server",method="GET",path="/boom"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "http_request_errors_total"))
}

func TestRequestIDAndLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, time.UTC)

	e := echo.New()
	e.Use(NewRequestID())
	e.Use(NewRequestLogger(log, func(c echo.Context) bool {
		return c.Request().URL.Path == "/skip"
	}))
	e.GET("/hello", func(c echo.Context) error { return c.String(http.StatusOK, "hi") })
	e.GET("/skip", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", http.NoBody))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/skip", http.NoBody))

	id := rec.Header().Get(echo.HeaderXRequestID)
	require.Len(t, id, 36)

	out := buf.String()
	assert.Contains(t, out, "uri=/hello")
	assert.Contains(t, out, "trace_id="+id)
	assert.NotContains(t, out, "uri=/skip")
}

func TestSecureHeaders(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewSecureHeaders(DefaultSecurityConfig()))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get(echo.HeaderXFrameOptions))
	assert.Equal(t, DefaultContentSecurityPolicy, rec.Header().Get(echo.HeaderContentSecurityPolicy))
}
