// Package submission holds the defect report domain: fields, validation,
// case numbers and the input masks shared with the form.
package submission

import (
	"maps"
	"strings"
	"time"
)

// Form field keys. They double as keys of FieldErrors.
const (
	FieldContactName       = "contact_name"
	FieldContactEmail      = "contact_email"
	FieldContactPhone      = "contact_phone"
	FieldDealerName        = "dealer_name"
	FieldSerialNumber      = "serial_number"
	FieldIssuesDescription = "issues_description"
	FieldIncidentDate      = "incident_date"
	FieldIncidentTime      = "incident_time"
	FieldSparePartNumber   = "spare_part_number"
	FieldFiles             = "files"
	FieldCaptchaAnswer     = "captcha_ans"
)

// FileRecord describes one stored attachment. JSON keys match the stored
// files blob layout.
type FileRecord struct {
	URL          string `json:"url"`
	StoredPath   string `json:"file"`
	MimeType     string `json:"type"`
	OriginalName string `json:"name"`
	Size         int64  `json:"size,omitempty"`
}

// IsImage reports whether the attachment can be previewed inline
func (f FileRecord) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/") && !f.IsHEIC()
}

// IsHEIC reports whether the attachment is a HEIC/HEIF image, which most
// browsers cannot render
func (f FileRecord) IsHEIC() bool {
	switch f.MimeType {
	case "image/heic", "image/heif":
		return true
	}
	ext := strings.ToLower(Extension(f.OriginalName))
	return ext == "heic" || ext == "heif"
}

// Extension returns the lowercase extension of name without the dot
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Fields are the user supplied text fields of a report
type Fields struct {
	ContactName       string
	ContactEmail      string
	ContactPhone      string
	DealerName        string
	SerialNumber      string
	IssuesDescription string
	IncidentDate      string
	IncidentTime      string
	SparePartNumber   string
}

// Trimmed returns a copy with surrounding whitespace removed from every
// field. Inner newlines of the description are kept.
func (f Fields) Trimmed() Fields {
	return Fields{
		ContactName:       strings.TrimSpace(f.ContactName),
		ContactEmail:      strings.TrimSpace(f.ContactEmail),
		ContactPhone:      strings.TrimSpace(f.ContactPhone),
		DealerName:        strings.TrimSpace(f.DealerName),
		SerialNumber:      strings.TrimSpace(f.SerialNumber),
		IssuesDescription: strings.TrimSpace(f.IssuesDescription),
		IncidentDate:      strings.TrimSpace(f.IncidentDate),
		IncidentTime:      strings.TrimSpace(f.IncidentTime),
		SparePartNumber:   strings.TrimSpace(f.SparePartNumber),
	}
}

// Submission is a persisted defect report. Reports are never updated.
type Submission struct {
	ID int64
	Fields
	Files       []FileRecord
	SubmittedAt time.Time
}

// CaseNumber returns the display case number of the submission
func (s *Submission) CaseNumber() string {
	return CaseNumber(s.ID)
}

// FieldErrors maps a field key to its user facing message
type FieldErrors map[string]string

// Merge copies other into e; keys in other win
func (e FieldErrors) Merge(other FieldErrors) FieldErrors {
	if e == nil {
		e = make(FieldErrors, len(other))
	}
	maps.Copy(e, other)
	return e
}
