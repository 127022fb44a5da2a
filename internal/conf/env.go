// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "STORM_DEBUG", validateEnvBool},

		// Web server
		{"webserver.listen", "STORM_LISTEN", nil},
		{"webserver.baseurl", "STORM_BASE_URL", validateEnvURL},
		{"webserver.maxuploadsize", "STORM_MAX_UPLOAD_SIZE", validateEnvByteSize},
		{"webserver.maxfilesize", "STORM_MAX_FILE_SIZE", validateEnvByteSize},

		// Admin access
		{"security.adminuser", "STORM_ADMIN_USER", nil},
		{"security.adminpasswordhash", "STORM_ADMIN_PASSWORD_HASH", validateEnvBcryptHash},
		{"security.adminemail", "STORM_ADMIN_EMAIL", validateEnvEmail},
		{"security.sessionsecret", "STORM_SESSION_SECRET", nil},
		{"security.adminpasswordhashfile", "STORM_ADMIN_PASSWORD_HASH_FILE", nil},
		{"security.sessionsecretfile", "STORM_SESSION_SECRET_FILE", nil},

		// Intake form
		{"intake.recipientemail", "STORM_RECIPIENT_EMAIL", validateEnvEmail},
		{"intake.sparepartsurl", "STORM_SPARE_PARTS_URL", validateEnvURL},

		// Database
		{"output.sqlite.path", "STORM_SQLITE_PATH", nil},
		{"output.mysql.enabled", "STORM_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "STORM_MYSQL_HOST", nil},
		{"output.mysql.port", "STORM_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "STORM_MYSQL_USER", nil},
		{"output.mysql.password", "STORM_MYSQL_PASSWORD", nil},
		{"output.mysql.passwordfile", "STORM_MYSQL_PASSWORD_FILE", nil},
		{"output.mysql.database", "STORM_MYSQL_DATABASE", nil},

		// Media storage
		{"storage.backend", "STORM_STORAGE_BACKEND", validateEnvStorageBackend},
		{"storage.local.path", "STORM_STORAGE_PATH", nil},
		{"storage.s3.bucket", "STORM_S3_BUCKET", nil},
		{"storage.s3.region", "STORM_S3_REGION", nil},
		{"storage.s3.endpoint", "STORM_S3_ENDPOINT", validateEnvURL},
		{"storage.s3.publicurl", "STORM_S3_PUBLIC_URL", validateEnvURL},
		{"storage.s3.accesskeyid", "STORM_S3_ACCESS_KEY_ID", nil},
		{"storage.s3.secretaccesskey", "STORM_S3_SECRET_ACCESS_KEY", nil},
		{"storage.s3.secretaccesskeyfile", "STORM_S3_SECRET_ACCESS_KEY_FILE", nil},

		// Notification and telemetry
		{"notification.enabled", "STORM_NOTIFY_ENABLED", validateEnvBool},
		{"notification.url", "STORM_NOTIFY_URL", nil},
		{"notification.urlfile", "STORM_NOTIFY_URL_FILE", nil},
		{"telemetry.sentry.enabled", "STORM_SENTRY_ENABLED", validateEnvBool},
		{"telemetry.sentry.dsn", "STORM_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must include scheme and host, got '%s'", value)
	}
	return nil
}

func validateEnvEmail(value string) error {
	if _, err := mail.ParseAddress(value); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvByteSize(value string) error {
	if _, err := ParseByteSize(value); err != nil {
		return err
	}
	return nil
}

func validateEnvBcryptHash(value string) error {
	if !isBcryptHash(value) {
		return fmt.Errorf("value is not a bcrypt hash")
	}
	return nil
}

func validateEnvStorageBackend(value string) error {
	switch value {
	case StorageBackendLocal, StorageBackendS3:
		return nil
	default:
		return fmt.Errorf("storage backend must be %q or %q, got %q", StorageBackendLocal, StorageBackendS3, value)
	}
}
