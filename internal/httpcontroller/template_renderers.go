package httpcontroller

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/captcha"
	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

// pageTemplates are the top level templates the handlers render
var pageTemplates = []string{"form", "admin-list", "admin-detail", "admin-settings", "error"}

// PageData is the data shared by every page
type PageData struct {
	Title     string
	AppName   string
	CSRFToken string
	Admin     bool   // render the admin header
	Tab       string // active admin tab
	Flashes   []string
}

// FormPage is the data of the public report form
type FormPage struct {
	PageData
	Challenge     captcha.Challenge
	SparePartsURL string
	MaxFileSize   string
}

// ListPage is the data of the admin submission list
type ListPage struct {
	PageData
	Submissions []*submission.Submission
	Total       int64
	Page        int
	TotalPages  int
}

// DetailPage is the data of a single submission. A nil Submission
// renders the not found message.
type DetailPage struct {
	PageData
	Submission *submission.Submission
}

// SettingsPage is the data of the admin settings form
type SettingsPage struct {
	PageData
	Intake           conf.IntakeSettings
	DefaultRecipient string
	Errors           []string
}

// ErrorPage is the data of the error page
type ErrorPage struct {
	PageData
	Code    int
	Message string
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses all views and checks every page template
// is defined
func NewTemplateRenderer(views fs.FS) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(templateFunctions()).ParseFS(views, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse views: %w", err)
	}

	var missing []string
	for _, name := range pageTemplates {
		if tmpl.Lookup(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("views missing templates: %s", strings.Join(missing, ", "))
	}

	return &TemplateRenderer{templates: tmpl}, nil
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	// Execute into a buffer so a failing template never sends half a page
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		GetLogger().Error("template execution failed",
			logger.String("template", name),
			logger.Error(err))
		return err
	}

	_, err := buf.WriteTo(w)
	return err
}
