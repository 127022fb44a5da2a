package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/k3a/html2text"
	"github.com/spf13/cobra"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/notification"
	"github.com/tphakala/storm-intake/internal/submission"
)

// Options controls the test notification
type Options struct {
	To     string // overrides the configured recipient
	DryRun bool   // print the rendered mail instead of sending it
}

// Command returns a cobra command that sends a sample report notification
// through the configured mailer
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test report notification",
		Long: `Render a sample defect report and send it through the configured mailer.

Examples:
  # Send to the configured recipient
  storm-intake notify

  # Send to another address
  storm-intake notify --to=service@example.com

  # Print the rendered mail without sending
  storm-intake notify --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mailer, err := notification.NewMailer(settings.Notification.Enabled,
				settings.Notification.URL, settings.Notification.Timeout)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), cmd.OutOrStdout(), settings, mailer, opts)
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "Recipient address, defaults to the configured recipient")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the rendered notification instead of sending it")

	return cmd
}

// Run renders the sample report and sends or prints it
func Run(ctx context.Context, out io.Writer, settings *conf.Settings, mailer notification.MailSender, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dispatcher, err := notification.NewDispatcher(mailer)
	if err != nil {
		return err
	}

	cfg := notification.Config{
		RecipientEmail: settings.RecipientEmail(),
		AdminBaseURL:   settings.WebServer.BaseURL,
	}
	if opts.To != "" {
		cfg.RecipientEmail = opts.To
	}

	sample := SampleSubmission(time.Now())

	if opts.DryRun {
		msg, err := dispatcher.Render(cfg, sample)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "To: %s\nSubject: %s\n\n%s\n", msg.To, msg.Subject, html2text.HTML2Text(msg.HTML))
		return nil
	}

	if err := dispatcher.Dispatch(ctx, cfg, sample); err != nil {
		return fmt.Errorf("failed to send test notification: %w", err)
	}

	fmt.Fprintf(out, "Test notification sent to %s\n", cfg.RecipientEmail)
	return nil
}

// SampleSubmission returns the report used for test notifications
func SampleSubmission(now time.Time) *submission.Submission {
	return &submission.Submission{
		ID: 1,
		Fields: submission.Fields{
			ContactName:       "Test Contact",
			ContactEmail:      "dealer@example.com",
			ContactPhone:      "+1 555 0100",
			DealerName:        "Test Dealer",
			SerialNumber:      "HKX0000000000000000",
			IssuesDescription: "This is a test notification.\nNo action is required.",
			IncidentDate:      now.Format("2006-01-02"),
			IncidentTime:      now.Format("15:04"),
		},
		SubmittedAt: now,
	}
}
