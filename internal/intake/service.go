// Package intake accepts defect reports: it checks the challenge, validates
// fields, stores attachments, persists the report and notifies staff.
package intake

import (
	"context"
	"fmt"
	"html"
	"runtime/debug"
	"time"

	"github.com/tphakala/storm-intake/internal/captcha"
	"github.com/tphakala/storm-intake/internal/logger"
	"github.com/tphakala/storm-intake/internal/notification"
	"github.com/tphakala/storm-intake/internal/observability/metrics"
	"github.com/tphakala/storm-intake/internal/submission"
)

// User facing messages
const (
	MsgWrongAnswer   = "Wrong answer"
	MsgCheckAnswer   = "Please check the math answer."
	MsgDatabaseError = "Database Error: "
	MsgFatalError    = "A fatal server error occurred: "
)

// Outcome is the final state of a submission attempt
type Outcome int

const (
	Succeeded Outcome = iota
	Rejected
	Failed
)

// String returns the outcome metric label
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return metrics.OutcomeSucceeded
	case Rejected:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}

// Request is one submission attempt as received from the form
type Request struct {
	ChallengeA string // captcha_val1
	ChallengeB string // captcha_val2
	Answer     string // captcha_ans
	Fields     submission.Fields
	Uploads    []Upload
}

// Result is what the caller renders back to the client
type Result struct {
	Outcome      Outcome
	Message      string
	Errors       submission.FieldErrors
	SubmissionID int64
	CaseNumber   string
}

// Inserter persists new reports
type Inserter interface {
	Insert(ctx context.Context, s *submission.Submission) (int64, error)
}

// Notifier delivers the staff notification of a stored report
type Notifier interface {
	Dispatch(ctx context.Context, cfg notification.Config, s *submission.Submission) error
}

// Metrics receives submission level results
type Metrics interface {
	RecordSubmission(outcome string, duration float64)
	RecordNotification(err error, duration float64)
}

// NotifyConfigFunc returns the notification config current at call time
type NotifyConfigFunc func() notification.Config

// Service runs the submission pipeline
type Service struct {
	repo         Inserter
	processor    *Processor
	notifier     Notifier
	notifyConfig NotifyConfigFunc
	metrics      Metrics
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithMetrics records outcomes to m
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithNotifier enables notifications, reading their config from cfg on
// every submission
func WithNotifier(n Notifier, cfg NotifyConfigFunc) ServiceOption {
	return func(s *Service) {
		s.notifier = n
		s.notifyConfig = cfg
	}
}

// NewService wires the pipeline
func NewService(repo Inserter, processor *Processor, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, processor: processor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs one submission attempt. It never panics and never returns an
// error; every failure is folded into the Result.
func (s *Service) Submit(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	log := GetLogger().WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("submission panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			res = failed(MsgFatalError + fmt.Sprint(r))
		}
		if s.metrics != nil {
			s.metrics.RecordSubmission(res.Outcome.String(), time.Since(start).Seconds())
		}
	}()

	if !captcha.Verify(req.ChallengeA, req.ChallengeB, req.Answer) {
		log.Info("challenge failed")
		return Result{
			Outcome: Rejected,
			Message: MsgCheckAnswer,
			Errors:  submission.FieldErrors{submission.FieldCaptchaAnswer: MsgWrongAnswer},
		}
	}

	fields := req.Fields.Trimmed()
	fieldErrs := submission.ValidateFields(fields)
	// files are processed even when fields failed so every problem is reported at once
	files := s.processor.Process(ctx, req.Uploads, fieldErrs)

	if len(fieldErrs) > 0 {
		log.Info("submission rejected", logger.Int("error_count", len(fieldErrs)))
		return Result{Outcome: Rejected, Errors: fieldErrs}
	}

	fields.IncidentTime = submission.NormalizeTime(fields.IncidentTime)
	sub := &submission.Submission{Fields: fields, Files: files}

	id, err := s.repo.Insert(ctx, sub)
	if err != nil {
		log.Error("failed to persist submission", logger.Error(err))
		return failed(MsgDatabaseError + err.Error())
	}
	sub.ID = id
	caseNumber := sub.CaseNumber()

	s.notify(ctx, sub)

	log.Info("submission accepted",
		logger.Int64("submission_id", id),
		logger.String("case_number", caseNumber),
		logger.Int("files", len(files)))

	return Result{
		Outcome:      Succeeded,
		Message:      SuccessMessage(caseNumber),
		SubmissionID: id,
		CaseNumber:   caseNumber,
	}
}

// notify sends the staff notification. Failures are logged and counted only.
func (s *Service) notify(ctx context.Context, sub *submission.Submission) {
	if s.notifier == nil {
		return
	}

	var cfg notification.Config
	if s.notifyConfig != nil {
		cfg = s.notifyConfig()
	}

	start := time.Now()
	err := s.notifier.Dispatch(ctx, cfg, sub)
	if s.metrics != nil {
		s.metrics.RecordNotification(err, time.Since(start).Seconds())
	}
	if err != nil {
		GetLogger().WithContext(ctx).Warn("notification failed",
			logger.Int64("submission_id", sub.ID),
			logger.Error(err))
	}
}

func failed(message string) Result {
	return Result{Outcome: Failed, Message: message}
}

// SuccessMessage returns the HTML confirmation fragment shown after a
// successful submission
func SuccessMessage(caseNumber string) string {
	return fmt.Sprintf(`<div class="am-dcf-success-content">
	<span class="am-dcf-success-icon">✓</span>
	<div class="am-dcf-success-text">
		<h3>Thank You!</h3>
		<p>Your defect report has been submitted successfully.</p>
		<div class="am-dcf-case-box">Case number: <strong>%s</strong></div>
	</div>
</div>`, html.EscapeString(caseNumber))
}
