// Package frontend provides the embedded server side views and static
// assets of the intake form and the admin pages.
package frontend

import (
	"embed"
	"io/fs"
)

//go:embed views
var viewsDir embed.FS

//go:embed assets
var assetsDir embed.FS

// ViewsFS holds the html/template views, rooted at the views directory
var ViewsFS fs.FS

// AssetsFS holds the static css and js, served under /assets
var AssetsFS fs.FS

func init() {
	// Strip the directory prefixes to serve files directly
	ViewsFS, _ = fs.Sub(viewsDir, "views")
	AssetsFS, _ = fs.Sub(assetsDir, "assets")
}
