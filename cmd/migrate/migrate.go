package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/datastore"
	"github.com/tphakala/storm-intake/internal/logger"
)

// Command creates the command that creates or repairs the submissions table.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or repair the submissions table",
		Long:  "Create the submissions table when missing and add any missing columns, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), datastore.New(settings))
		},
	}
}

// Run opens the store, ensures its schema and closes it again
func Run(ctx context.Context, ds datastore.Interface) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Global().Module("migrate").Warn("failed to close datastore", logger.Error(err))
		}
	}()

	if err := ds.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	logger.Global().Module("migrate").Info("database schema is up to date")
	return nil
}
