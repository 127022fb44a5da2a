package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/storm-intake/internal/conf"
)

type recordingMailer struct {
	to, subject, body string
	err               error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func testSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Security.AdminEmail = "admin@example.com"
	settings.WebServer.BaseURL = "https://intake.example.com"
	return settings
}

func TestRunSendsSample(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	var out bytes.Buffer

	require.NoError(t, Run(t.Context(), &out, testSettings(), mailer, Options{}))

	assert.Equal(t, "admin@example.com", mailer.to)
	assert.Equal(t, "New Defect Report [STORM-01001] - Test Dealer", mailer.subject)
	assert.Contains(t, mailer.body, "https://intake.example.com/admin/submissions/1")
	assert.Contains(t, out.String(), "Test notification sent to admin@example.com")
}

func TestRunRecipientOverride(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	require.NoError(t, Run(t.Context(), &bytes.Buffer{}, testSettings(), mailer, Options{To: "ops@example.com"}))
	assert.Equal(t, "ops@example.com", mailer.to)
}

func TestRunDryRun(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{}
	var out bytes.Buffer

	require.NoError(t, Run(t.Context(), &out, testSettings(), mailer, Options{DryRun: true}))

	assert.Empty(t, mailer.to, "dry run must not send")
	assert.Contains(t, out.String(), "To: admin@example.com")
	assert.Contains(t, out.String(), "Subject: New Defect Report [STORM-01001]")
	assert.NotContains(t, out.String(), "<strong>")
	assert.Contains(t, out.String(), "Test Dealer")
}

func TestRunSendFailure(t *testing.T) {
	t.Parallel()

	mailer := &recordingMailer{err: errors.New("connection refused")}
	err := Run(t.Context(), &bytes.Buffer{}, testSettings(), mailer, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send test notification")
}

func TestSampleSubmission(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC)
	s := SampleSubmission(now)
	assert.Equal(t, "2026-03-04", s.IncidentDate)
	assert.Equal(t, "09:05", s.IncidentTime)
	assert.Equal(t, "STORM-01001", s.CaseNumber())
}
