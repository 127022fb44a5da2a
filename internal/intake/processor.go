package intake

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/observability/metrics"
	"github.com/tphakala/storm-intake/internal/storage"
	"github.com/tphakala/storm-intake/internal/submission"
)

// fallbackContentType is recorded when the type cannot be resolved. Only
// .heic names get that far in practice.
const fallbackContentType = "image/heic"

var allowedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {}, "heic": {}, "heif": {},
	"mp4": {}, "mov": {}, "avi": {}, "mpeg": {}, "mpg": {}, "ogg": {}, "webm": {},
}

// FileMetrics receives per file results
type FileMetrics interface {
	RecordFile(result string, sizeBytes int64)
}

// Processor validates uploads and hands accepted files to storage
type Processor struct {
	store   storage.FileStorage
	metrics FileMetrics
}

// NewProcessor creates a processor. metrics may be nil.
func NewProcessor(store storage.FileStorage, m FileMetrics) *Processor {
	return &Processor{store: store, metrics: m}
}

// Allowed reports whether name has an accepted attachment extension
func Allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	_, ok := allowedExtensions[ext]
	return ok
}

// Process stores every acceptable upload and returns their records in
// upload order. Problems are written to errs under the files key; a later
// problem overwrites an earlier one and never stops the batch.
func (p *Processor) Process(ctx context.Context, uploads []Upload, errs submission.FieldErrors) []submission.FileRecord {
	records := make([]submission.FileRecord, 0, len(uploads))
	log := GetLogger().WithContext(ctx)

	for _, u := range uploads {
		switch u.Status {
		case StatusOK:
		case StatusNoFile:
			continue
		default:
			errs[submission.FieldFiles] = fmt.Sprintf("Error for %s: %s", u.Name, statusMessage(u))
			log.Warn("upload transport error",
				logger.Int("status", int(u.Status)),
				logger.Int("code", u.Code))
			p.record(metrics.FileError, 0)
			continue
		}

		if !Allowed(u.Name) {
			errs[submission.FieldFiles] = fmt.Sprintf("File type not allowed: %s", u.Name)
			log.Info("file type rejected", logger.String("extension", submission.Extension(u.Name)))
			p.record(metrics.FileRejected, 0)
			continue
		}

		rec, err := p.storeUpload(ctx, u)
		if err != nil {
			errs[submission.FieldFiles] = fmt.Sprintf("Upload error for %s: %s", u.Name, err.Error())
			log.Error("failed to store upload", logger.Error(err))
			p.record(metrics.FileError, 0)
			continue
		}

		records = append(records, rec)
		p.record(metrics.FileStored, rec.Size)
	}

	return records
}

func (p *Processor) storeUpload(ctx context.Context, u Upload) (submission.FileRecord, error) {
	if u.Open == nil {
		return submission.FileRecord{}, errors.Newf("no content").
			Component("intake").
			Category(errors.CategoryFileIO).
			Build()
	}

	body, err := u.Open()
	if err != nil {
		return submission.FileRecord{}, errors.New(err).
			Component("intake").
			Category(errors.CategoryFileIO).
			Context("operation", "open_upload").
			FileContext(u.Name, u.Size).
			Build()
	}
	defer func() {
		if cerr := body.Close(); cerr != nil {
			GetLogger().Debug("failed to close upload", logger.Error(cerr))
		}
	}()

	stored, err := p.store.Store(ctx, storage.Object{
		Name:         u.Name,
		DeclaredType: u.DeclaredType,
		Size:         u.Size,
		Body:         body,
	})
	if err != nil {
		return submission.FileRecord{}, err
	}

	mimeType := stored.ContentType
	if mimeType == "" {
		mimeType = fallbackContentType
	}

	return submission.FileRecord{
		URL:          stored.URL,
		StoredPath:   stored.Path,
		MimeType:     mimeType,
		OriginalName: u.Name,
		Size:         stored.Size,
	}, nil
}

func (p *Processor) record(result string, size int64) {
	if p.metrics != nil {
		p.metrics.RecordFile(result, size)
	}
}
