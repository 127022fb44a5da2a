package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/privacy"
)

// ShoutrrrMailer sends mail through a shoutrrr smtp:// service URL. The
// recipient and subject are set per message.
type ShoutrrrMailer struct {
	sender *router.ServiceRouter
}

// NewShoutrrrMailer validates serviceURL and builds the sender
func NewShoutrrrMailer(serviceURL string, timeout time.Duration) (*ShoutrrrMailer, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("notification URL is required")
	}

	sender, err := shoutrrr.CreateSender(serviceURL)
	if err != nil {
		// the raw error may echo the URL and its credentials
		return nil, privacy.WrapError(fmt.Errorf("invalid notification URL: %w", err))
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrMailer{sender: sender}, nil
}

// Send delivers one HTML mail to a single recipient
func (m *ShoutrrrMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{
		"toaddresses": to,
		"usehtml":     "yes",
	}
	params.SetTitle(subject)
	params["subject"] = subject

	for _, err := range m.sender.Send(htmlBody, &params) {
		if err != nil {
			return privacy.WrapError(fmt.Errorf("mail delivery failed: %w", err))
		}
	}
	return nil
}

// NewMailer returns the shoutrrr mailer when mail is enabled and the
// logging stand-in otherwise
func NewMailer(enabled bool, serviceURL string, timeout time.Duration) (MailSender, error) {
	if !enabled {
		return LogMailer{}, nil
	}
	return NewShoutrrrMailer(serviceURL, timeout)
}

// LogMailer only logs messages. It stands in when mail is disabled.
type LogMailer struct{}

// Send logs the message
func (LogMailer) Send(ctx context.Context, to, subject, _ string) error {
	GetLogger().WithContext(ctx).Info("mail disabled, notification not sent",
		logger.String("subject", subject))
	return nil
}
