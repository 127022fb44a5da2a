package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/storm-intake/cmd/migrate"
	"github.com/tphakala/storm-intake/cmd/notify"
	"github.com/tphakala/storm-intake/cmd/serve"
	"github.com/tphakala/storm-intake/cmd/submit"
	"github.com/tphakala/storm-intake/internal/buildinfo"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
)

// telemetryFlushTimeout bounds how long exit waits for queued error reports
const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "storm-intake",
		Short:        "STORM dealer defect report intake",
		Version:      build.Version(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate(build.String() + "\n")

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings, &configPath); err != nil {
		logger.Global().Module("main").Warn("flag binding failed", logger.Error(err))
	}

	// Add sub-commands to the root command.
	submitCmd := submit.Command()
	rootCmd.AddCommand(
		serve.Command(settings),
		migrate.Command(settings),
		notify.Command(settings),
		submitCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// submit talks to a remote server and needs no local configuration
		if cmd.Name() == submitCmd.Name() {
			return nil
		}

		if configPath != "" {
			conf.SetConfigFile(configPath)
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		return initialize(settings, build)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		errors.FlushTelemetry(telemetryFlushTimeout)
		if err := logger.Global().Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to close log file: %v\n", err)
		}
	}

	return rootCmd
}

// initialize sets up logging and error telemetry once the configuration
// is loaded
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)

	sentry := settings.Telemetry.Sentry
	if sentry.Enabled {
		if err := errors.InitSentry(sentry.DSN, sentry.Environment, build.Release(), sentry.SampleRate); err != nil {
			central.Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}

	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings, configPath *string) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(configPath, "config", "c", "", "Path to the configuration file")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
