package httpcontroller

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	"github.com/tphakala/storm-intake/internal/captcha"
	"github.com/tphakala/storm-intake/internal/logger"
)

// pageData builds the shared page data for the current request
func (h *Handlers) pageData(c echo.Context, title, tab string) PageData {
	token, err := mw.EnsureCSRFToken(c)
	if err != nil {
		GetLogger().Error("failed to create CSRF token", logger.Error(err))
	}

	return PageData{
		Title:     title,
		AppName:   h.settings().Main.Name,
		CSRFToken: token,
		Admin:     strings.HasPrefix(c.Request().URL.Path, "/admin"),
		Tab:       tab,
	}
}

// FormPage renders the public defect report form with a fresh challenge
func (h *Handlers) FormPage(c echo.Context) error {
	settings := h.settings()

	data := FormPage{
		PageData:      h.pageData(c, "Defect Report", ""),
		Challenge:     captcha.Issue(),
		SparePartsURL: settings.Intake.SparePartsURL,
		MaxFileSize:   settings.WebServer.MaxFileSize,
	}

	// operands are single use, never serve them from a cache
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return h.render(c, http.StatusOK, "form", data)
}
