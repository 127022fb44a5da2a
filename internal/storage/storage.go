// Package storage persists report attachments. The local backend writes
// into a sandboxed directory; the s3 backend uploads to a bucket.
package storage

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/storm-intake/internal/logger"
)

// Object is an attachment handed to a backend
type Object struct {
	Name         string    // client supplied file name
	DeclaredType string    // client supplied content type, informational only
	Size         int64     // size in bytes, -1 when unknown
	Body         io.Reader // file content
}

// Stored describes where an attachment ended up
type Stored struct {
	URL         string // public URL of the object
	Path        string // backend specific location (relative path or object key)
	ContentType string // resolved from the extension, empty when unknown
	Size        int64  // bytes written
}

// FileStorage stores attachments
type FileStorage interface {
	Store(ctx context.Context, obj Object) (Stored, error)
}

// GetLogger returns the storage package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("storage")
}

// contentTypes lists the attachment types the form accepts. HEIC is left to
// the caller's fallback.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heif": "image/heif",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mpeg": "video/mpeg",
	"mpg":  "video/mpeg",
	"ogg":  "video/ogg",
	"webm": "video/webm",
}

// ContentTypeFor resolves a content type from the file extension
func ContentTypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return ""
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	ct := mime.TypeByExtension("." + ext)
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ""
}

const maxNameLength = 100

// SanitizeName reduces a client file name to a safe single path element
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}

	clean := strings.Trim(b.String(), ".-")
	if len(clean) > maxNameLength {
		ext := path.Ext(clean)
		if len(ext) >= maxNameLength {
			ext = ""
		}
		clean = clean[:maxNameLength-len(ext)] + ext
	}
	if clean == "" || clean == "." {
		return "file"
	}
	return clean
}

// objectKey builds a unique, date partitioned key for an attachment
func objectKey(now time.Time, name string) string {
	id := strings.ToLower(ulid.Make().String())
	return path.Join(now.UTC().Format("2006/01"), id+"-"+SanitizeName(name))
}

// joinURL appends key to a base URL or path prefix
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
