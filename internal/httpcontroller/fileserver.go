package httpcontroller

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
)

// mediaHandler serves stored attachments from the local storage
// filesystem. Directories are never listed.
func (h *Handlers) mediaHandler() echo.HandlerFunc {
	fileServer := http.FileServer(noListingFS{afero.NewHttpFs(h.mediaFs)})
	return echo.WrapHandler(http.StripPrefix("/media", fileServer))
}

// noListingFS hides directories from http.FileServer
type noListingFS struct {
	fs http.FileSystem
}

// Open opens name, reporting directories as missing
func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}
