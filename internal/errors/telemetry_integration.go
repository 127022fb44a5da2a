// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/storm-intake/internal/privacy"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		errorTitle := generateErrorTitle(ee)

		scope.SetTag("error_title", errorTitle)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))
		if priority := ee.GetPriority(); priority != "" {
			scope.SetTag("priority", priority)
		}

		for key, value := range ee.GetContext() {
			if strValue, ok := value.(string); ok {
				value = privacy.ScrubMessage(strValue)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		event := newSentryEvent(ee, errorTitle)
		scope.SetLevel(event.Level)
		scope.SetFingerprint([]string{errorTitle, ee.GetComponent(), string(ee.Category)})

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// newSentryEvent builds the event for ee. Submissions carry contact
// details, so the message is scrubbed.
func newSentryEvent(ee *EnhancedError, title string) *sentry.Event {
	message := privacy.ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.GetMessage()))

	event := sentry.NewEvent()
	event.Message = message
	event.Level = getErrorLevel(ee)
	event.Timestamp = ee.GetTimestamp()
	event.Exception = []sentry.Exception{{
		Type:  title,
		Value: message,
	}}
	return event
}

// generateErrorTitle creates a grouping title from component, category and operation
func generateErrorTitle(ee *EnhancedError) string {
	var titleParts []string

	if component := ee.GetComponent(); component != "" && component != ComponentUnknown {
		titleParts = append(titleParts, titleCase(component))
	}

	if categoryTitle := formatCategoryForTitle(ee.Category); categoryTitle != "" {
		titleParts = append(titleParts, categoryTitle)
	}

	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		titleParts = append(titleParts, formatOperationForTitle(operation))
	}

	if len(titleParts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}

	return strings.Join(titleParts, " ")
}

// formatCategoryForTitle converts error categories to human-readable titles
func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryDatabase:
		return "Database Error"
	case CategoryStorage:
		return "Storage Error"
	case CategoryFileIO:
		return "File I/O Error"
	case CategoryNotification:
		return "Notification Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryNetwork:
		return "Network Error"
	default:
		return string(category)
	}
}

// formatOperationForTitle converts operation context to human-readable format
func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, word := range words {
		words[i] = titleCase(word)
	}
	return strings.Join(words, " ")
}

// titleCase capitalizes the first letter of a string
func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// getErrorLevel returns the Sentry level of ee. An explicit priority wins
// over the category default.
func getErrorLevel(ee *EnhancedError) sentry.Level {
	switch ee.GetPriority() {
	case PriorityCritical:
		return sentry.LevelFatal
	case PriorityHigh:
		return sentry.LevelError
	case PriorityMedium:
		return sentry.LevelWarning
	case PriorityLow:
		return sentry.LevelInfo
	}

	switch ee.Category {
	case CategoryDatabase, CategoryConfiguration, CategoryStorage:
		return sentry.LevelError
	case CategoryNotification, CategoryNetwork, CategoryHTTP, CategoryFileIO:
		return sentry.LevelWarning
	case CategoryValidation, CategoryChallenge, CategoryNotFound:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	telemetryMu             sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter. Passing nil
// disables reporting and restores the fast build path.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMu.Lock()
	defer telemetryMu.Unlock()
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	telemetryMu.RLock()
	defer telemetryMu.RUnlock()
	return globalTelemetryReporter
}

// reportToTelemetry reports an error to the configured telemetry system
func reportToTelemetry(ee *EnhancedError) {
	if reporter := GetTelemetryReporter(); reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

// InitSentry initializes the Sentry client and installs it as the global
// telemetry reporter. An empty DSN leaves reporting disabled.
func InitSentry(dsn, environment, release string, sampleRate float64) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			// strip request data, it carries dealer contact details
			event.Request = nil
			event.User = sentry.User{}
			event.ServerName = ""
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushTelemetry waits up to timeout for queued events to be sent
func FlushTelemetry(timeout time.Duration) bool {
	if !hasActiveReporting.Load() {
		return true
	}
	return sentry.Flush(timeout)
}
