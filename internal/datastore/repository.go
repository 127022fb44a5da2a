package datastore

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

// Insert stores a new report. The id and submitted_at are assigned by the
// database.
func (ds *DataStore) Insert(ctx context.Context, s *submission.Submission) (int64, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}

	start := time.Now()
	record, err := toRecord(s)
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryProcessing).
			Context("operation", "encode_files").
			Build()
	}

	if err := ds.DB.WithContext(ctx).Create(record).Error; err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityHigh).
			Timing("insert_submission", time.Since(start)).
			Build()
	}

	s.ID = record.ID
	s.SubmittedAt = record.SubmittedAt

	GetLogger().Debug("submission inserted",
		logger.Int64("submission_id", record.ID),
		logger.Duration("elapsed", time.Since(start)))

	return record.ID, nil
}

// Get returns one report
func (ds *DataStore) Get(ctx context.Context, id int64) (*submission.Submission, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}

	key := strconv.FormatInt(id, 10)
	if cached, ok := ds.detail.Get(key); ok {
		if s, ok := cached.(*submission.Submission); ok {
			return s, nil
		}
	}

	// concurrent misses for the same id share one query
	v, err, _ := ds.lookups.Do(key, func() (any, error) {
		return ds.load(ctx, id, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*submission.Submission), nil
}

// load reads one report from the database and caches it
func (ds *DataStore) load(ctx context.Context, id int64, key string) (*submission.Submission, error) {
	var record SubmissionRecord
	err := ds.DB.WithContext(ctx).First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("submission", id)
	}
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_submission").
			Build()
	}

	s := record.toSubmission()
	ds.detail.Set(key, s, cache.DefaultExpiration)
	return s, nil
}

// List returns reports ordered by submission time, newest first. Rows
// sharing a timestamp are ordered by id.
func (ds *DataStore) List(ctx context.Context, limit, offset int) ([]*submission.Submission, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}

	var records []SubmissionRecord
	err := ds.DB.WithContext(ctx).
		Order("submitted_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(max(offset, 0)).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_submissions").
			Context("limit", limit).
			Build()
	}

	out := make([]*submission.Submission, 0, len(records))
	for i := range records {
		out = append(out, records[i].toSubmission())
	}
	return out, nil
}

// Count returns the number of stored reports
func (ds *DataStore) Count(ctx context.Context) (int64, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}

	var n int64
	if err := ds.DB.WithContext(ctx).Model(&SubmissionRecord{}).Count(&n).Error; err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count_submissions").
			Build()
	}
	return n, nil
}

// indexedFields are the model fields carrying an index tag
var indexedFields = []string{"SerialNumber", "SubmittedAt"}

// EnsureSchema creates the table and adds columns missing from tables
// created by older versions. Safe to run repeatedly.
func (ds *DataStore) EnsureSchema(ctx context.Context) error {
	if err := ds.ready(); err != nil {
		return err
	}

	db := ds.DB.WithContext(ctx)
	migrator := db.Migrator()

	if !migrator.HasTable(&SubmissionRecord{}) {
		if err := migrator.CreateTable(&SubmissionRecord{}); err != nil {
			return schemaError(err, "create_table")
		}
		GetLogger().Info("created submissions table")
		return nil
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(&SubmissionRecord{}); err != nil {
		return schemaError(err, "parse_model")
	}

	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || migrator.HasColumn(&SubmissionRecord{}, field.DBName) {
			continue
		}
		if err := migrator.AddColumn(&SubmissionRecord{}, field.Name); err != nil {
			return schemaError(err, "add_column_"+field.DBName)
		}
		GetLogger().Info("added missing column", logger.String("column", field.DBName))
	}

	for _, field := range indexedFields {
		if migrator.HasIndex(&SubmissionRecord{}, field) {
			continue
		}
		if err := migrator.CreateIndex(&SubmissionRecord{}, field); err != nil {
			return schemaError(err, "create_index")
		}
	}

	return nil
}

// Ping checks the database connection
func (ds *DataStore) Ping(ctx context.Context) error {
	if err := ds.ready(); err != nil {
		return err
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (ds *DataStore) ready() error {
	if ds == nil || ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

func schemaError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityCritical).
		Context("operation", operation).
		Build()
}
