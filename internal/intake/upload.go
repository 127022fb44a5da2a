package intake

import (
	"fmt"
	"io"
)

// UploadStatus is the transport outcome of one uploaded part
type UploadStatus int

const (
	StatusOK UploadStatus = iota
	// StatusNoFile marks an empty file input; it is skipped silently
	StatusNoFile
	StatusTooLarge
	StatusPartial
	StatusNoTmpDir
	StatusCantWrite
	// StatusOther carries a transport specific Code
	StatusOther
)

// Upload is one received attachment
type Upload struct {
	Name         string
	DeclaredType string
	Size         int64
	Status       UploadStatus
	Code         int // error code for StatusOther
	Open         func() (io.ReadCloser, error)
}

// statusMessage returns the user facing text of a failed transport status
func statusMessage(u Upload) string {
	switch u.Status {
	case StatusTooLarge:
		return "The file is too large for the server to process. Please try a smaller file or ask your admin to increase the upload limit."
	case StatusPartial:
		return "The file was only partially uploaded."
	case StatusNoTmpDir:
		return "Missing a temporary folder on the server."
	case StatusCantWrite:
		return "Failed to write file to disk."
	default:
		return fmt.Sprintf("Upload failed with error code: %d", u.Code)
	}
}
