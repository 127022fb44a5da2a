package storage

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o640
)

// LocalStore keeps attachments below a root directory. All access goes
// through a BasePathFs so names cannot escape the root.
type LocalStore struct {
	fs        afero.Fs
	publicURL string
	maxSize   int64
	now       func() time.Time
}

// LocalOption configures a LocalStore
type LocalOption func(*LocalStore)

// WithMaxSize rejects files larger than n bytes while copying
func WithMaxSize(n int64) LocalOption {
	return func(s *LocalStore) {
		s.maxSize = n
	}
}

// WithClock overrides the time source used for key partitioning
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStore) {
		s.now = now
	}
}

// NewLocalStore creates a store rooted at root on the OS filesystem
func NewLocalStore(root, publicURL string, opts ...LocalOption) (*LocalStore, error) {
	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryFileIO).
			Context("operation", "create_media_root").
			Build()
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), root), publicURL, opts...), nil
}

// NewLocalStoreFs creates a store on an existing filesystem. Tests pass
// an in-memory filesystem.
func NewLocalStoreFs(fs afero.Fs, publicURL string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{
		fs:        fs,
		publicURL: publicURL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fs exposes the sandboxed filesystem for media serving
func (s *LocalStore) Fs() afero.Fs {
	return s.fs
}

// Store writes the object under a fresh key
func (s *LocalStore) Store(ctx context.Context, obj Object) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	start := time.Now()
	key := objectKey(s.now(), obj.Name)

	if err := s.fs.MkdirAll(path.Dir(key), dirPermissions); err != nil {
		return Stored{}, s.fail(err, obj, "create_directory", "could not prepare upload directory")
	}

	f, err := s.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermissions)
	if err != nil {
		return Stored{}, s.fail(err, obj, "create_file", "could not create file")
	}

	src := obj.Body
	if s.maxSize > 0 {
		src = io.LimitReader(obj.Body, s.maxSize+1)
	}

	written, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(key)
		return Stored{}, s.fail(copyErr, obj, "write_file", "could not write file")
	case closeErr != nil:
		_ = s.fs.Remove(key)
		return Stored{}, s.fail(closeErr, obj, "close_file", "could not write file")
	case s.maxSize > 0 && written > s.maxSize:
		_ = s.fs.Remove(key)
		return Stored{}, errors.Newf("file exceeds the maximum size of %d bytes", s.maxSize).
			Component("storage").
			Category(errors.CategoryValidation).
			FileContext(obj.Name, written).
			Build()
	}

	GetLogger().Debug("stored attachment",
		logger.String("key", key),
		logger.Int64("size", written),
		logger.Duration("elapsed", time.Since(start)))

	return Stored{
		URL:         joinURL(s.publicURL, key),
		Path:        key,
		ContentType: ContentTypeFor(obj.Name),
		Size:        written,
	}, nil
}

// fail logs the underlying cause and returns an error safe to show users
func (s *LocalStore) fail(cause error, obj Object, operation, message string) error {
	GetLogger().Error("failed to store attachment",
		logger.String("operation", operation),
		logger.Error(cause))
	return errors.New(errors.NewStd(message)).
		Component("storage").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		FileContext(obj.Name, obj.Size).
		Build()
}
