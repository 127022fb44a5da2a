package httpcontroller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/storm-intake/internal/conf"
	"github.com/tphakala/storm-intake/internal/errors"
	"github.com/tphakala/storm-intake/internal/logger"
)

// PageSize is the number of submissions per admin list page
const PageSize = 100

// Flash messages shown on the admin pages
const (
	MsgRepaired      = "Database table repaired successfully."
	MsgSettingsSaved = "Settings saved."
	MsgNotFound      = "Submission not found."
)

// ListSubmissions renders the newest first submission list
func (h *Handlers) ListSubmissions(c echo.Context) error {
	ctx := c.Request().Context()

	total, err := h.repo.Count(ctx)
	if err != nil {
		return err
	}

	pages := totalPages(total)
	page := min(parsePage(c.QueryParam("page")), pages)

	list, err := h.repo.List(ctx, PageSize, (page-1)*PageSize)
	if err != nil {
		return err
	}

	pd := h.pageData(c, "Submissions", "submissions")
	pd.Flashes = h.popFlashes(c)

	return h.render(c, http.StatusOK, "admin-list", ListPage{
		PageData:    pd,
		Submissions: list,
		Total:       total,
		Page:        page,
		TotalPages:  pages,
	})
}

// SubmissionDetail renders one submission with its files
func (h *Handlers) SubmissionDetail(c echo.Context) error {
	pd := h.pageData(c, "Defect Report Details", "submissions")

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return h.render(c, http.StatusNotFound, "admin-detail", DetailPage{PageData: pd})
	}

	s, err := h.repo.Get(c.Request().Context(), id)
	if errors.IsNotFound(err) {
		return h.render(c, http.StatusNotFound, "admin-detail", DetailPage{PageData: pd})
	}
	if err != nil {
		return err
	}

	pd.Title = "Defect Report Details: " + s.CaseNumber()
	return h.render(c, http.StatusOK, "admin-detail", DetailPage{
		PageData:   pd,
		Submission: s,
	})
}

// SettingsPage renders the intake settings form
func (h *Handlers) SettingsPage(c echo.Context) error {
	pd := h.pageData(c, "Settings", "settings")
	pd.Flashes = h.popFlashes(c)

	return h.renderSettings(c, http.StatusOK, pd, h.settings().Intake, nil)
}

// SaveSettings validates and persists the intake settings
func (h *Handlers) SaveSettings(c echo.Context) error {
	intake := conf.IntakeSettings{
		RecipientEmail: strings.TrimSpace(c.FormValue("recipient_email")),
		SparePartsURL:  strings.TrimSpace(c.FormValue("spare_parts_url")),
	}

	if _, err := h.updateIntake(intake); err != nil {
		var ve conf.ValidationError
		if errors.As(err, &ve) {
			pd := h.pageData(c, "Settings", "settings")
			return h.renderSettings(c, http.StatusUnprocessableEntity, pd, intake, settingsErrors(ve))
		}
		return errors.New(err).
			Component("http-controller").
			Category(errors.CategoryConfiguration).
			Context("operation", "save_intake_settings").
			Build()
	}

	GetLogger().Info("intake settings updated",
		logger.Bool("recipient_set", intake.RecipientEmail != ""),
		logger.Bool("spare_parts_url_set", intake.SparePartsURL != ""))

	h.addFlash(c, MsgSettingsSaved)
	return c.Redirect(http.StatusSeeOther, "/admin/settings")
}

func (h *Handlers) renderSettings(c echo.Context, code int, pd PageData, intake conf.IntakeSettings, errs []string) error {
	return h.render(c, code, "admin-settings", SettingsPage{
		PageData:         pd,
		Intake:           intake,
		DefaultRecipient: h.settings().Security.AdminEmail,
		Errors:           errs,
	})
}

// settingsErrors turns validation failures into form messages
func settingsErrors(ve conf.ValidationError) []string {
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		switch {
		case strings.Contains(e, "RecipientEmail"):
			msgs = append(msgs, "Please enter a valid recipient email address.")
		case strings.Contains(e, "SparePartsURL"):
			msgs = append(msgs, "Please enter a valid URL for the spare parts list.")
		default:
			msgs = append(msgs, e)
		}
	}
	return msgs
}

// RepairSchema recreates missing table columns and returns to the list
func (h *Handlers) RepairSchema(c echo.Context) error {
	err := h.repo.EnsureSchema(c.Request().Context())
	if h.intakeMetrics != nil {
		h.intakeMetrics.RecordSchemaRepair(err)
	}
	if err != nil {
		return err
	}

	GetLogger().Info("database schema repaired", logger.String("remote_ip", c.RealIP()))

	h.addFlash(c, MsgRepaired)
	return c.Redirect(http.StatusSeeOther, "/admin/submissions")
}

// parsePage returns the 1 based page number, defaulting to 1
func parsePage(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// totalPages returns the page count for total rows, at least 1
func totalPages(total int64) int {
	if total <= 0 {
		return 1
	}
	return int((total + PageSize - 1) / PageSize)
}
