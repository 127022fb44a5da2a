package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	v1 "github.com/tphakala/storm-intake/internal/api/v1"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/intake"
	"github.com/tphakala/storm-intake/internal/observability"
	"github.com/tphakala/storm-intake/internal/submission"
)

// fakeStore is an empty datastore
type fakeStore struct {
	pingErr error
}

func (f *fakeStore) Insert(context.Context, *submission.Submission) (int64, error) { return 1, nil }
func (f *fakeStore) Get(context.Context, int64) (*submission.Submission, error)    { return nil, nil }
func (f *fakeStore) List(context.Context, int, int) ([]*submission.Submission, error) {
	return nil, nil
}
func (f *fakeStore) Count(context.Context) (int64, error) { return 0, nil }
func (f *fakeStore) EnsureSchema(context.Context) error   { return nil }
func (f *fakeStore) Open() error                          { return nil }
func (f *fakeStore) Ping(context.Context) error           { return f.pingErr }
func (f *fakeStore) Close() error                         { return nil }

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, req intake.Request) intake.Result {
	return m.Called(ctx, req).Get(0).(intake.Result)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Main: conf.MainSettings{Name: "STORM Intake"},
		WebServer: conf.WebServerSettings{
			Listen:        "127.0.0.1:0",
			MaxUploadSize: "8M",
			MaxFileSize:   "1M",
		},
		Security: conf.SecuritySettings{
			AdminUser:     "admin",
			SessionSecret: "0123456789abcdef0123456789abcdef",
		},
	}
}

func newTestServer(t *testing.T, settings *conf.Settings, svc v1.Submitter) *Server {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	s, err := New(settings,
		WithDataStore(&fakeStore{}),
		WithSubmitter(svc),
		WithMetrics(m),
		WithSettingsSource(func() *conf.Settings { return settings }),
		WithSettingsUpdater(func(in conf.IntakeSettings) (*conf.Settings, error) {
			settings.Intake = in
			return settings, nil
		}),
	)
	require.NoError(t, err)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

// challenge fetches operands and the CSRF token with its cookie
func challenge(t *testing.T, s *Server) (v1.ChallengeResponse, []*http.Cookie) {
	t.Helper()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/challenge", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var ch v1.ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
	require.NotEmpty(t, ch.CSRFToken)
	return ch, rec.Result().Cookies()
}

func postForm(token string, cookies []*http.Cookie) *http.Request {
	body := "--x\r\nContent-Disposition: form-data; name=\"contact_name\"\r\n\r\nJane\r\n--x--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	if token != "" {
		req.Header.Set(mw.CSRFHeader, token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(testSettings(), WithSubmitter(&mockSubmitter{}),
		WithSettingsSource(testSettings))
	require.ErrorContains(t, err, "datastore")

	_, err = New(testSettings(), WithDataStore(&fakeStore{}),
		WithSettingsSource(testSettings))
	require.ErrorContains(t, err, "submission service")

	bad := testSettings()
	bad.WebServer.MaxUploadSize = "lots"
	_, err = New(bad, WithDataStore(&fakeStore{}), WithSubmitter(&mockSubmitter{}),
		WithSettingsSource(testSettings))
	require.ErrorContains(t, err, "body limit")
}

func TestSubmissionWithoutCSRFTokenIsRejected(t *testing.T) {
	t.Parallel()

	svc := &mockSubmitter{}
	s := newTestServer(t, testSettings(), svc)

	rec := serve(s, postForm("", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, v1.MsgSecurityCheckFailed, resp.Data.Message)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmissionWithCSRFToken(t *testing.T) {
	t.Parallel()

	svc := &mockSubmitter{}
	svc.On("Submit", mock.Anything, mock.Anything).Return(intake.Result{
		Outcome:      intake.Succeeded,
		Message:      intake.SuccessMessage("STORM-01001"),
		SubmissionID: 1,
		CaseNumber:   "STORM-01001",
	}).Once()
	s := newTestServer(t, testSettings(), svc)

	ch, cookies := challenge(t, s)
	rec := serve(s, postForm(ch.CSRFToken, cookies))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "STORM-01001", resp.Data.CaseNumber)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	svc.AssertExpectations(t)
}

func TestSubmissionRateLimit(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.WebServer.RateLimit = conf.RateLimitSettings{
		Enabled:   true,
		Rate:      0.001,
		Burst:     1,
		ExpiresIn: time.Minute,
	}

	svc := &mockSubmitter{}
	svc.On("Submit", mock.Anything, mock.Anything).Return(intake.Result{
		Outcome: intake.Rejected,
		Errors:  submission.FieldErrors{submission.FieldContactEmail: submission.MsgEmailInvalid},
	}).Once()
	s := newTestServer(t, settings, svc)

	ch, cookies := challenge(t, s)

	rec := serve(s, postForm(ch.CSRFToken, cookies))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(s, postForm(ch.CSRFToken, cookies))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, v1.MsgTooManyRequests, resp.Data.Message)
	svc.AssertExpectations(t)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.WebServer.MaxUploadSize = "1K"
	s := newTestServer(t, settings, &mockSubmitter{})

	ch, cookies := challenge(t, s)
	req := postForm(ch.CSRFToken, cookies)
	req.Body = http.NoBody
	req.ContentLength = 4096

	rec := serve(s, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, v1.MsgTooLarge, resp.Data.Message)
}

func TestBodyLimitChunkedWithFormToken(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.WebServer.MaxUploadSize = "1K"
	svc := &mockSubmitter{}
	s := newTestServer(t, settings, svc)

	ch, cookies := challenge(t, s)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField(mw.CSRFFormField, ch.CSRFToken))
	require.NoError(t, w.WriteField(submission.FieldContactName, "Jane"))
	part, err := w.CreateFormFile("files[]", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, 4096))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// no Content-Length, so the limit trips while the body is read
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", io.MultiReader(&buf))
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	require.Equal(t, int64(-1), req.ContentLength)

	rec := serve(s, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, v1.MsgTooLarge, resp.Data.Message)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestAPINotFoundUsesEnvelope(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testSettings(), &mockSubmitter{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", http.NoBody))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp v1.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Data.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testSettings(), &mockSubmitter{})

	serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), `path="/api/v1/health"`)
}

func TestFormPageServed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testSettings(), &mockSubmitter{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="am-dcf-form"`)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestHTMLCSRFFailureRendersPage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testSettings(), &mockSubmitter{})

	req := httptest.NewRequest(http.MethodPost, "/admin/repair", http.NoBody)
	req.SetBasicAuth("admin", "whatever")
	rec := serve(s, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), v1.MsgSecurityCheckFailed)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty listen", mutate: func(c *Config) { c.Listen = "" }, wantErr: "listen"},
		{name: "bad body limit", mutate: func(c *Config) { c.BodyLimit = "big" }, wantErr: "body limit"},
		{name: "zero read timeout", mutate: func(c *Config) { c.ReadTimeout = 0 }, wantErr: "read timeout"},
		{
			name: "rate limit without burst",
			mutate: func(c *Config) {
				c.RateLimit = conf.RateLimitSettings{Enabled: true, Rate: 1}
			},
			wantErr: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Debug = true
	cfg := ConfigFromSettings(settings)

	assert.Equal(t, "127.0.0.1:0", cfg.Listen)
	assert.Equal(t, "8M", cfg.BodyLimit)
	assert.Equal(t, int64(1<<20), cfg.MaxFileSize)
	assert.True(t, cfg.Debug)
	assert.Contains(t, cfg.String(), "body_limit=8M")
}
