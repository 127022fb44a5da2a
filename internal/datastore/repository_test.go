package datastore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/submission"
)

// newTestStore returns a store on a fresh in-memory database
func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	ds := NewWithDB(db)
	require.NoError(t, ds.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func sampleSubmission(dealer string) *submission.Submission {
	return &submission.Submission{
		Fields: submission.Fields{
			ContactName:       "Jane Dealer",
			ContactEmail:      "jane@example.com",
			ContactPhone:      "040 123",
			DealerName:        dealer,
			SerialNumber:      "HKX1234567890123456",
			IssuesDescription: "Line one\nLine two",
			IncidentDate:      "2026-03-01",
			IncidentTime:      "14:30:00",
		},
		Files: []submission.FileRecord{
			{URL: "/media/a.jpg", StoredPath: "2026/03/a.jpg", MimeType: "image/jpeg", OriginalName: "a.jpg"},
		},
	}
}

func TestInsertAndGet(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	s := sampleSubmission("North Motors")
	id, err := ds.Insert(ctx, s)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, id, s.ID)
	assert.False(t, s.SubmittedAt.IsZero())

	got, err := ds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "North Motors", got.DealerName)
	assert.Equal(t, "Line one\nLine two", got.IssuesDescription)
	assert.Equal(t, "", got.SparePartNumber)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "2026/03/a.jpg", got.Files[0].StoredPath)
	assert.Equal(t, "image/jpeg", got.Files[0].MimeType)
}

func TestIDsAreMonotonic(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	first, err := ds.Insert(ctx, sampleSubmission("A"))
	require.NoError(t, err)
	second, err := ds.Insert(ctx, sampleSubmission("B"))
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestInsertWithoutFiles(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	s := sampleSubmission("A")
	s.Files = nil
	id, err := ds.Insert(ctx, s)
	require.NoError(t, err)

	var blobs []string
	require.NoError(t, ds.DB.Model(&SubmissionRecord{}).Where("id = ?", id).Pluck("files", &blobs).Error)
	require.Len(t, blobs, 1)
	assert.Equal(t, "[]", blobs[0])

	got, err := ds.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	_, err := ds.Get(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, dealer := range []string{"oldest", "middle", "newest"} {
		rec, err := toRecord(sampleSubmission(dealer))
		require.NoError(t, err)
		rec.SubmittedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, ds.DB.Create(rec).Error)
	}

	list, err := ds.List(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "newest", list[0].DealerName)
	assert.Equal(t, "oldest", list[2].DealerName)

	page, err := ds.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "oldest", page[0].DealerName)

	n, err := ds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, ds.EnsureSchema(ctx))
	require.NoError(t, ds.EnsureSchema(ctx))

	_, err := ds.Insert(ctx, sampleSubmission("A"))
	require.NoError(t, err)
	require.NoError(t, ds.EnsureSchema(ctx))

	n, err := ds.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "repair must keep existing rows")
}

func TestEnsureSchemaRepairsMissingColumns(t *testing.T) {
	t.Parallel()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	ds := NewWithDB(db)
	t.Cleanup(func() { _ = ds.Close() })

	// Table from an older release without spare parts or files
	require.NoError(t, db.Exec(`CREATE TABLE defect_reports (
		id integer PRIMARY KEY AUTOINCREMENT,
		contact_name varchar(255) NOT NULL DEFAULT '',
		contact_email varchar(255) NOT NULL DEFAULT '',
		contact_phone varchar(255) NOT NULL DEFAULT '',
		dealer_name varchar(255) NOT NULL DEFAULT '',
		serial_number varchar(19) NOT NULL DEFAULT '',
		issues_description text NOT NULL,
		incident_date varchar(32) NOT NULL DEFAULT '',
		incident_time varchar(32) NOT NULL DEFAULT '',
		submitted_at datetime
	)`).Error)

	require.NoError(t, ds.EnsureSchema(context.Background()))

	migrator := db.Migrator()
	assert.True(t, migrator.HasColumn(&SubmissionRecord{}, "spare_part_number"))
	assert.True(t, migrator.HasColumn(&SubmissionRecord{}, "files"))
	assert.True(t, migrator.HasIndex(&SubmissionRecord{}, "SubmittedAt"))

	_, err = ds.Insert(context.Background(), sampleSubmission("A"))
	require.NoError(t, err)
}

func TestConcurrentInsertsGetUniqueIDs(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	const workers = 10
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			id, err := ds.Insert(ctx, sampleSubmission("A"))
			assert.NoError(t, err)
			ids <- id
		})
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestConcurrentGetsShareLookup(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	ctx := context.Background()

	id, err := ds.Insert(ctx, sampleSubmission("Shared Motors"))
	require.NoError(t, err)

	const readers = 8
	results := make([]*submission.Submission, readers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range readers {
		g.Go(func() error {
			s, err := ds.Get(gctx, id)
			results[i] = s
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, s := range results {
		require.NotNil(t, s)
		assert.Equal(t, id, s.ID)
		assert.Equal(t, "Shared Motors", s.DealerName)
	}

	cached, ok := ds.detail.Get(strconv.FormatInt(id, 10))
	require.True(t, ok)
	assert.Equal(t, "Shared Motors", cached.(*submission.Submission).DealerName)
}

func TestConcurrentGetsOfMissingReport(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	var g errgroup.Group
	for range 4 {
		g.Go(func() error {
			_, err := ds.Get(context.Background(), 4242)
			return err
		})
	}
	err := g.Wait()
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Zero(t, ds.detail.ItemCount())
}

func TestUninitializedStore(t *testing.T) {
	t.Parallel()

	ds := &DataStore{}
	_, err := ds.Count(context.Background())
	assert.Error(t, err)
}

func TestFailurePriorities(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)
	require.NoError(t, ds.Close())

	_, err := ds.Insert(context.Background(), sampleSubmission("A"))
	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.PriorityHigh, ee.GetPriority())

	err = ds.EnsureSchema(context.Background())
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.PriorityCritical, ee.GetPriority())
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := mysqlDSN(confMySQL("db.internal", "3306", "storm", "p@ss:word", "reports"))
	assert.Contains(t, dsn, "storm:p@ss:word@tcp(db.internal:3306)/reports?")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}
