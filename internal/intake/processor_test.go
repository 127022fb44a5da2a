package intake

import (
	"fmt"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/storm-intake/internal/observability/metrics"
	"github.com/tphakala/storm-intake/internal/storage"
	"github.com/tphakala/storm-intake/internal/submission"
)

func TestAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"PHOTO.JPEG", true},
		{"clip.MOV", true},
		{"image.heic", true},
		{"image.HEIF", true},
		{"scan.pdf", false},
		{"script.php", false},
		{"noext", false},
		{"archive.jpg.exe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Allowed(tt.name))
		})
	}
}

func TestProcessStoresAllowedFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	p := NewProcessor(storage.NewLocalStoreFs(fs, "/media"), nil)

	errs := submission.FieldErrors{}
	records := p.Process(t.Context(), []Upload{
		upload("front.jpg", "jpegdata"),
		{Name: "", Status: StatusNoFile},
		upload("IMG_0001.HEIC", "heicdata"),
	}, errs)

	assert.Empty(t, errs)
	require.Len(t, records, 2)

	assert.Equal(t, "front.jpg", records[0].OriginalName)
	assert.Equal(t, "image/jpeg", records[0].MimeType)
	assert.Contains(t, records[0].URL, "/media/")

	assert.Equal(t, "IMG_0001.HEIC", records[1].OriginalName)
	assert.Equal(t, "image/heic", records[1].MimeType)

	data, err := afero.ReadFile(fs, records[0].StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))
}

func TestProcessMixedBatchKeepsValidFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	p := NewProcessor(storage.NewLocalStoreFs(fs, "/media"), nil)

	errs := submission.FieldErrors{}
	records := p.Process(t.Context(), []Upload{
		upload("front.jpg", "jpegdata"),
		upload("setup.exe", "MZ"),
		upload("plate.png", "pngdata"),
	}, errs)

	require.Len(t, records, 2)
	assert.Equal(t, "front.jpg", records[0].OriginalName)
	assert.Equal(t, "plate.png", records[1].OriginalName)
	for _, rec := range records {
		exists, err := afero.Exists(fs, rec.StoredPath)
		require.NoError(t, err)
		assert.True(t, exists, rec.StoredPath)
	}

	require.Len(t, errs, 1)
	assert.Equal(t, "File type not allowed: setup.exe", errs[submission.FieldFiles])
}

func TestProcessErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		upload Upload
		want   string
	}{
		{
			name:   "disallowed type",
			upload: upload("invoice.pdf", "x"),
			want:   "File type not allowed: invoice.pdf",
		},
		{
			name:   "too large",
			upload: Upload{Name: "big.mp4", Status: StatusTooLarge},
			want:   "Error for big.mp4: The file is too large for the server to process. Please try a smaller file or ask your admin to increase the upload limit.",
		},
		{
			name:   "partial",
			upload: Upload{Name: "a.jpg", Status: StatusPartial},
			want:   "Error for a.jpg: The file was only partially uploaded.",
		},
		{
			name:   "no tmp dir",
			upload: Upload{Name: "a.jpg", Status: StatusNoTmpDir},
			want:   "Error for a.jpg: Missing a temporary folder on the server.",
		},
		{
			name:   "cannot write",
			upload: Upload{Name: "a.jpg", Status: StatusCantWrite},
			want:   "Error for a.jpg: Failed to write file to disk.",
		},
		{
			name:   "other code",
			upload: Upload{Name: "a.jpg", Status: StatusOther, Code: 8},
			want:   "Error for a.jpg: Upload failed with error code: 8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &mockStorage{}
			p := NewProcessor(store, nil)
			errs := submission.FieldErrors{}

			records := p.Process(t.Context(), []Upload{tt.upload}, errs)

			assert.Empty(t, records)
			assert.Equal(t, tt.want, errs[submission.FieldFiles])
			store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessLastErrorWins(t *testing.T) {
	t.Parallel()

	store := &mockStorage{}
	store.On("Store", mock.Anything, mock.MatchedBy(func(o storage.Object) bool { return o.Name == "ok.png" })).
		Return(storage.Stored{URL: "/media/ok.png", Path: "ok.png", ContentType: "image/png", Size: 2}, nil)
	store.On("Store", mock.Anything, mock.MatchedBy(func(o storage.Object) bool { return o.Name == "fail.jpg" })).
		Return(storage.Stored{}, fmt.Errorf("could not write file"))

	m := &mockMetrics{}
	m.On("RecordFile", metrics.FileRejected, int64(0)).Once()
	m.On("RecordFile", metrics.FileError, int64(0)).Once()
	m.On("RecordFile", metrics.FileStored, int64(2)).Once()

	p := NewProcessor(store, m)
	errs := submission.FieldErrors{}

	records := p.Process(t.Context(), []Upload{
		upload("notes.txt", "x"),
		upload("fail.jpg", "y"),
		upload("ok.png", "zz"),
	}, errs)

	require.Len(t, records, 1)
	assert.Equal(t, "ok.png", records[0].OriginalName)
	assert.Equal(t, "Upload error for fail.jpg: could not write file", errs[submission.FieldFiles])
	m.AssertExpectations(t)
}

func TestProcessOpenFailure(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&mockStorage{}, nil)
	errs := submission.FieldErrors{}

	u := upload("a.jpg", "")
	u.Open = func() (io.ReadCloser, error) { return nil, fmt.Errorf("temp file vanished") }

	records := p.Process(t.Context(), []Upload{u}, errs)
	assert.Empty(t, records)
	assert.Equal(t, "Upload error for a.jpg: temp file vanished", errs[submission.FieldFiles])
}

func TestProcessEmptyTypeFallsBackToHEIC(t *testing.T) {
	t.Parallel()

	store := &mockStorage{}
	store.On("Store", mock.Anything, mock.Anything).
		Return(storage.Stored{URL: "/media/x.heic", Path: "x.heic"}, nil)

	p := NewProcessor(store, nil)
	records := p.Process(t.Context(), []Upload{upload("x.heic", "h")}, submission.FieldErrors{})

	require.Len(t, records, 1)
	assert.Equal(t, "image/heic", records[0].MimeType)
}
