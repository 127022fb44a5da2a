package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func TestLocalStoreWritesFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "/media/", WithClock(fixedNow))

	stored, err := store.Store(context.Background(), Object{
		Name: "front panel.JPG",
		Size: 5,
		Body: strings.NewReader("hello"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.Path, "2026/03/"))
	assert.True(t, strings.HasSuffix(stored.Path, "-front-panel.JPG"))
	assert.Equal(t, "/media/"+stored.Path, stored.URL)
	assert.Equal(t, "image/jpeg", stored.ContentType)
	assert.Equal(t, int64(5), stored.Size)

	data, err := afero.ReadFile(fs, stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLocalStoreUniqueKeys(t *testing.T) {
	t.Parallel()

	store := NewLocalStoreFs(afero.NewMemMapFs(), "/media")
	seen := map[string]bool{}
	for range 20 {
		stored, err := store.Store(context.Background(), Object{Name: "same.png", Body: strings.NewReader("x")})
		require.NoError(t, err)
		assert.False(t, seen[stored.Path])
		seen[stored.Path] = true
	}
}

func TestLocalStoreMaxSize(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "/media", WithMaxSize(4), WithClock(fixedNow))

	_, err := store.Store(context.Background(), Object{Name: "big.mp4", Body: strings.NewReader("12345")})
	require.Error(t, err)

	entries, err := afero.ReadDir(fs, "2026/03")
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLocalStoreWriteErrorIsGeneric(t *testing.T) {
	t.Parallel()

	store := NewLocalStoreFs(afero.NewMemMapFs(), "/media")
	_, err := store.Store(context.Background(), Object{Name: "a.png", Body: failingReader{}})
	require.Error(t, err)
	assert.Equal(t, "could not write file", err.Error())
}

func TestLocalStoreReadOnly(t *testing.T) {
	t.Parallel()

	store := NewLocalStoreFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/media")
	_, err := store.Store(context.Background(), Object{Name: "a.png", Body: strings.NewReader("x")})
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\dealer\IMG 001.HEIC`, "IMG-001.HEIC"},
		{"kuva äö.png", "kuva-.png"},
		{"...", "file"},
		{"", "file"},
		{strings.Repeat("a", 150) + ".png", strings.Repeat("a", 96) + ".png"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", ContentTypeFor("A.JPEG"))
	assert.Equal(t, "video/quicktime", ContentTypeFor("clip.mov"))
	assert.Equal(t, "image/heif", ContentTypeFor("x.heif"))
	assert.Empty(t, ContentTypeFor("noext"))
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestS3StoreUploads(t *testing.T) {
	t.Parallel()

	var captured *s3.PutObjectInput
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.AnythingOfType("*s3.PutObjectInput")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*s3.PutObjectInput)
		}).
		Return(&s3.PutObjectOutput{}, nil)

	store := NewS3StoreWithClient(client, S3Config{Bucket: "reports", Region: "eu-north-1", Prefix: "defects"})
	store.now = fixedNow

	stored, err := store.Store(context.Background(), Object{Name: "clip.mp4", Size: 3, Body: strings.NewReader("abc")})
	require.NoError(t, err)

	require.NotNil(t, captured)
	body, err := io.ReadAll(captured.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), body)
	assert.Equal(t, "reports", *captured.Bucket)
	assert.True(t, strings.HasPrefix(*captured.Key, "defects/2026/03/"))
	assert.Equal(t, "video/mp4", *captured.ContentType)
	assert.Equal(t, int64(3), *captured.ContentLength)

	assert.True(t, strings.HasPrefix(stored.URL, "https://reports.s3.eu-north-1.amazonaws.com/defects/2026/03/"))
	assert.Equal(t, "video/mp4", stored.ContentType)
	client.AssertExpectations(t)
}

func TestS3StoreHidesClientError(t *testing.T) {
	t.Parallel()

	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("AccessDenied: secret details"))

	store := NewS3StoreWithClient(client, S3Config{Bucket: "reports", Endpoint: "http://minio:9000"})
	_, err := store.Store(context.Background(), Object{Name: "a.heic", Size: -1, Body: strings.NewReader("x")})

	require.Error(t, err)
	assert.Equal(t, "could not upload file", err.Error())
}

func TestPublicBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.example.com", publicBaseURL(S3Config{PublicURL: "https://cdn.example.com"}))
	assert.Equal(t, "http://minio:9000/reports", publicBaseURL(S3Config{Endpoint: "http://minio:9000/", Bucket: "reports"}))
}
