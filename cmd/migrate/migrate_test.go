package migrate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/datastore"
)

func sqliteSettings(path string) *conf.Settings {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = path
	return settings
}

func TestRunCreatesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "storm.db")

	require.NoError(t, Run(t.Context(), datastore.New(sqliteSettings(path))))

	// running again on an existing table is a no-op
	require.NoError(t, Run(t.Context(), datastore.New(sqliteSettings(path))))

	db, err := datastore.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	assert.True(t, db.Migrator().HasTable(&datastore.SubmissionRecord{}))
}

func TestRunOpenFailure(t *testing.T) {
	err := Run(t.Context(), datastore.New(sqliteSettings("")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open datastore")
}
