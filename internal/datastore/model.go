package datastore

import (
	"encoding/json"
	"time"

	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/submission"
)

// SubmissionRecord is the gorm model of a defect report row. Date and time
// are kept as text since the time format is not enforced server side.
type SubmissionRecord struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	ContactName       string    `gorm:"type:varchar(255);not null;default:''"`
	ContactEmail      string    `gorm:"type:varchar(255);not null;default:''"`
	ContactPhone      string    `gorm:"type:varchar(255);not null;default:''"`
	DealerName        string    `gorm:"type:varchar(255);not null;default:''"`
	SerialNumber      string    `gorm:"type:varchar(19);not null;default:'';index"`
	IssuesDescription string    `gorm:"type:text;not null"`
	IncidentDate      string    `gorm:"type:varchar(32);not null;default:''"`
	IncidentTime      string    `gorm:"type:varchar(32);not null;default:''"`
	SparePartNumber   string    `gorm:"type:varchar(255);not null;default:''"`
	Files             string    `gorm:"type:text"`
	SubmittedAt       time.Time `gorm:"autoCreateTime;index"`
}

// TableName sets the table name used by gorm
func (SubmissionRecord) TableName() string {
	return "defect_reports"
}

// toRecord converts a submission into its row form
func toRecord(s *submission.Submission) (*SubmissionRecord, error) {
	files := s.Files
	if files == nil {
		files = []submission.FileRecord{}
	}
	blob, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}

	return &SubmissionRecord{
		ContactName:       s.ContactName,
		ContactEmail:      s.ContactEmail,
		ContactPhone:      s.ContactPhone,
		DealerName:        s.DealerName,
		SerialNumber:      s.SerialNumber,
		IssuesDescription: s.IssuesDescription,
		IncidentDate:      s.IncidentDate,
		IncidentTime:      s.IncidentTime,
		SparePartNumber:   s.SparePartNumber,
		Files:             string(blob),
	}, nil
}

// toSubmission converts a row back. An unreadable files blob yields an
// empty list rather than hiding the whole report.
func (r *SubmissionRecord) toSubmission() *submission.Submission {
	var files []submission.FileRecord
	if r.Files != "" {
		if err := json.Unmarshal([]byte(r.Files), &files); err != nil {
			GetLogger().Warn("unreadable files blob",
				logger.Int64("submission_id", r.ID),
				logger.Error(err))
			files = nil
		}
	}

	return &submission.Submission{
		ID: r.ID,
		Fields: submission.Fields{
			ContactName:       r.ContactName,
			ContactEmail:      r.ContactEmail,
			ContactPhone:      r.ContactPhone,
			DealerName:        r.DealerName,
			SerialNumber:      r.SerialNumber,
			IssuesDescription: r.IssuesDescription,
			IncidentDate:      r.IncidentDate,
			IncidentTime:      r.IncidentTime,
			SparePartNumber:   r.SparePartNumber,
		},
		Files:       files,
		SubmittedAt: r.SubmittedAt,
	}
}
