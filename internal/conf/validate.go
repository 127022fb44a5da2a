// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/storm-intake/internal/errors"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct tag rules and flattens failures into a
// ValidationError
func validateStruct(s any) error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := ValidationError{}
	for _, fe := range fieldErrs {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: failed %q check (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return ve
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateStruct(settings); err != nil {
		var tagErrs ValidationError
		if errors.As(err, &tagErrs) {
			ve.Errors = append(ve.Errors, tagErrs.Errors...)
		} else {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateStorageSettings(&settings.Storage); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateNotificationSettings(&settings.Notification); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Telemetry.Sentry.Enabled && settings.Telemetry.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry.sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateWebServerSettings(s *WebServerSettings) error {
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q is not a host:port address: %w", s.Listen, err)
	}

	uploadSize, err := ParseByteSize(s.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("webserver.maxuploadsize: %w", err)
	}

	if s.MaxFileSize != "" {
		fileSize, err := ParseByteSize(s.MaxFileSize)
		if err != nil {
			return fmt.Errorf("webserver.maxfilesize: %w", err)
		}
		if fileSize > uploadSize {
			return fmt.Errorf("webserver.maxfilesize (%s) exceeds webserver.maxuploadsize (%s)", s.MaxFileSize, s.MaxUploadSize)
		}
	}

	if s.RateLimit.Enabled && (s.RateLimit.Rate <= 0 || s.RateLimit.Burst < 1) {
		return fmt.Errorf("webserver.ratelimit needs a positive rate and a burst of at least 1")
	}

	return nil
}

func validateSecuritySettings(s *SecuritySettings) error {
	if s.AdminPasswordHash != "" && !isBcryptHash(s.AdminPasswordHash) {
		return fmt.Errorf("security.adminpasswordhash must be a bcrypt hash")
	}
	if s.AdminPasswordHash != "" && strings.TrimSpace(s.AdminUser) == "" {
		return fmt.Errorf("security.adminuser is required when an admin password is set")
	}
	return nil
}

func validateOutputSettings(s *OutputSettings) error {
	switch {
	case s.SQLite.Enabled && s.MySQL.Enabled:
		return fmt.Errorf("only one of output.sqlite and output.mysql can be enabled")
	case !s.SQLite.Enabled && !s.MySQL.Enabled:
		return fmt.Errorf("one of output.sqlite or output.mysql must be enabled")
	case s.SQLite.Enabled && s.SQLite.Path == "":
		return fmt.Errorf("output.sqlite.path is required")
	case s.MySQL.Enabled && (s.MySQL.Host == "" || s.MySQL.Database == "" || s.MySQL.Username == ""):
		return fmt.Errorf("output.mysql requires host, database and username")
	}
	return nil
}

func validateStorageSettings(s *StorageSettings) error {
	switch s.Backend {
	case StorageBackendLocal:
		if s.Local.Path == "" {
			return fmt.Errorf("storage.local.path is required for the local backend")
		}
	case StorageBackendS3:
		if s.S3.Bucket == "" || s.S3.Region == "" {
			return fmt.Errorf("storage.s3.bucket and storage.s3.region are required for the s3 backend")
		}
	}
	return nil
}

func validateNotificationSettings(s *NotificationSettings) error {
	if s.Enabled && s.URL == "" {
		return fmt.Errorf("notification.url is required when notifications are enabled")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("notification.timeout cannot be negative")
	}
	return nil
}
