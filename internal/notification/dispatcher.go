// Package notification e-mails new defect reports to the configured
// recipient.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/k3a/html2text"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

//go:embed templates/report.html
var templateFS embed.FS

// Config is the per call dispatch configuration. It is read from the
// current settings by the caller; the dispatcher keeps no copy.
type Config struct {
	RecipientEmail string
	AdminBaseURL   string
}

// MailSender delivers one HTML mail
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is a rendered notification
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Dispatcher renders and sends report notifications
type Dispatcher struct {
	sender MailSender
	tmpl   *template.Template
}

// GetLogger returns the notification package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}

// NewDispatcher creates a dispatcher sending through sender
func NewDispatcher(sender MailSender) (*Dispatcher, error) {
	tmpl, err := template.New("report.html").
		Funcs(template.FuncMap{"nl2br": nl2br}).
		ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification template: %w", err)
	}
	return &Dispatcher{sender: sender, tmpl: tmpl}, nil
}

type reportView struct {
	*submission.Submission
	CaseNumber string
	ViewURL    string
}

// Render builds the notification for a stored submission
func (d *Dispatcher) Render(cfg Config, s *submission.Submission) (*Message, error) {
	view := reportView{
		Submission: s,
		CaseNumber: s.CaseNumber(),
		ViewURL:    ReportURL(cfg.AdminBaseURL, s.ID),
	}

	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, view); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryProcessing).
			Context("operation", "render_notification").
			Build()
	}

	return &Message{
		To:      cfg.RecipientEmail,
		Subject: fmt.Sprintf("New Defect Report [%s] - %s", view.CaseNumber, s.DealerName),
		HTML:    buf.String(),
	}, nil
}

// Dispatch renders and sends the notification for s. Errors are returned
// for the caller to log; a failed mail never affects the stored report.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg Config, s *submission.Submission) error {
	if strings.TrimSpace(cfg.RecipientEmail) == "" {
		return errors.Newf("no notification recipient configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	msg, err := d.Render(cfg, s)
	if err != nil {
		return err
	}

	log := GetLogger().WithContext(ctx)
	log.Trace("notification body", logger.String("text", html2text.HTML2Text(msg.HTML)))

	start := time.Now()
	if err := d.sender.Send(ctx, msg.To, msg.Subject, msg.HTML); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Priority(errors.PriorityLow).
			Timing("send_notification", time.Since(start)).
			Context("case_number", s.CaseNumber()).
			Build()
	}

	log.Info("notification sent",
		logger.String("case_number", s.CaseNumber()),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// ReportURL returns the admin detail link of a report
func ReportURL(baseURL string, id int64) string {
	return strings.TrimRight(baseURL, "/") + "/admin/submissions/" + strconv.FormatInt(id, 10)
}

// nl2br escapes text and turns newlines into line breaks
func nl2br(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n")) //nolint:gosec // input escaped above
}
