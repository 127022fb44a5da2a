package api

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/storm-intake/internal/api/middleware"
	"github.com/tphakala/storm-intake/internal/intake"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

// Form field names of the captcha
const (
	FieldCaptchaA = "captcha_val1"
	FieldCaptchaB = "captcha_val2"
)

// fileFields lists the accepted multipart keys of attachments
var fileFields = []string{"files[]", "files"}

// SubmitReport accepts a multipart defect report
func (c *Controller) SubmitReport(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		if mw.IsBodyTooLarge(err) {
			return Fail(ctx, http.StatusRequestEntityTooLarge, MsgTooLarge)
		}
		GetLogger().Warn("invalid submission form", logger.Error(err))
		return Fail(ctx, http.StatusBadRequest, "Invalid form submission.")
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			GetLogger().Debug("failed to remove multipart temp files", logger.Error(err))
		}
	}()

	req := intake.Request{
		ChallengeA: formValue(form, FieldCaptchaA),
		ChallengeB: formValue(form, FieldCaptchaB),
		Answer:     formValue(form, submission.FieldCaptchaAnswer),
		Fields: submission.Fields{
			ContactName:       formValue(form, submission.FieldContactName),
			ContactEmail:      formValue(form, submission.FieldContactEmail),
			ContactPhone:      formValue(form, submission.FieldContactPhone),
			DealerName:        formValue(form, submission.FieldDealerName),
			SerialNumber:      formValue(form, submission.FieldSerialNumber),
			IssuesDescription: formValue(form, submission.FieldIssuesDescription),
			IncidentDate:      formValue(form, submission.FieldIncidentDate),
			IncidentTime:      formValue(form, submission.FieldIncidentTime),
			SparePartNumber:   formValue(form, submission.FieldSparePartNumber),
		},
		Uploads: c.uploads(form),
	}

	res := c.service.Submit(ctx.Request().Context(), req)

	switch res.Outcome {
	case intake.Succeeded:
		return ctx.JSON(http.StatusOK, Response{
			Success: true,
			Data: ResponseData{
				Message:      res.Message,
				SubmissionID: res.SubmissionID,
				CaseNumber:   res.CaseNumber,
			},
		})
	case intake.Rejected:
		return ctx.JSON(http.StatusUnprocessableEntity, Response{
			Data: ResponseData{Message: res.Message, Errors: res.Errors},
		})
	default:
		return Fail(ctx, http.StatusInternalServerError, res.Message)
	}
}

// uploads converts multipart file headers into intake uploads. Parts over
// the per file cap are marked too large instead of failing the request.
func (c *Controller) uploads(form *multipart.Form) []intake.Upload {
	var uploads []intake.Upload
	for _, key := range fileFields {
		for _, fh := range form.File[key] {
			uploads = append(uploads, c.upload(fh))
		}
	}
	return uploads
}

func (c *Controller) upload(fh *multipart.FileHeader) intake.Upload {
	u := intake.Upload{
		Name:         fh.Filename,
		DeclaredType: fh.Header.Get(echo.HeaderContentType),
		Size:         fh.Size,
		Status:       intake.StatusOK,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}

	switch {
	case fh.Filename == "" && fh.Size == 0:
		u.Status = intake.StatusNoFile
	case c.maxFileSize > 0 && fh.Size > c.maxFileSize:
		u.Status = intake.StatusTooLarge
	}

	return u
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
