package serve

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/storm-intake/internal/api"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/datastore"
	"github.com/tphakala/storm-intake/internal/intake"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/notification"
	"github.com/tphakala/storm-intake/internal/observability"
	"github.com/tphakala/storm-intake/internal/storage"
)

// Command creates the command that runs the intake web server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the defect report intake server",
		Long:  "Serve the public report form, the submission API and the admin pages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "", "Listen address, e.g. :8080")
	cmd.Flags().String("baseurl", "", "Public base URL used in notification links")

	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("webserver.baseurl", cmd.Flags().Lookup("baseurl")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

// Run opens the datastore, builds the submission pipeline and serves
// until interrupted.
func Run(ctx context.Context, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Global().Module("serve")

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()

	if err := ds.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare database schema: %w", err)
	}

	store, mediaFs, err := NewStorage(ctx, settings)
	if err != nil {
		return err
	}

	mailer, err := notification.NewMailer(settings.Notification.Enabled, settings.Notification.URL, settings.Notification.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}
	dispatcher, err := notification.NewDispatcher(mailer)
	if err != nil {
		return fmt.Errorf("failed to create notification dispatcher: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	service := intake.NewService(ds,
		intake.NewProcessor(store, metrics.Intake),
		intake.WithMetrics(metrics.Intake),
		intake.WithNotifier(dispatcher, NotifyConfig(settings)))

	opts := []api.ServerOption{
		api.WithDataStore(ds),
		api.WithSubmitter(service),
		api.WithMetrics(metrics),
	}
	if mediaFs != nil {
		opts = append(opts, api.WithMediaFs(mediaFs))
	}

	server, err := api.New(settings, opts...)
	if err != nil {
		return err
	}

	log.Info("storm-intake started",
		logger.String("storage", settings.Storage.Backend),
		logger.Bool("mail", settings.Notification.Enabled))

	return server.StartWithGracefulShutdown(ctx)
}

// NewStorage builds the configured attachment backend. The returned
// filesystem is non-nil only for the local backend, whose files are
// served under /media.
func NewStorage(ctx context.Context, settings *conf.Settings) (storage.FileStorage, afero.Fs, error) {
	switch settings.Storage.Backend {
	case "s3":
		s3cfg := settings.Storage.S3
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			Prefix:          s3cfg.Prefix,
			PublicURL:       s3cfg.PublicURL,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create s3 storage: %w", err)
		}
		return store, nil, nil
	default:
		local := settings.Storage.Local
		store, err := storage.NewLocalStore(local.Path, local.PublicURL,
			storage.WithMaxSize(settings.MaxFileSizeBytes()))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return store, store.Fs(), nil
	}
}

// NotifyConfig reads the notification recipient and link base from the
// live settings, so admin changes apply to the next submission.
func NotifyConfig(fallback *conf.Settings) intake.NotifyConfigFunc {
	return func() notification.Config {
		current := conf.GetSettings()
		if current == nil {
			current = fallback
		}
		return notification.Config{
			RecipientEmail: current.RecipientEmail(),
			AdminBaseURL:   current.WebServer.BaseURL,
		}
	}
}
