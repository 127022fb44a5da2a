// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "STORM Intake")

	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.baseurl", "http://localhost:8080")
	viper.SetDefault("webserver.maxuploadsize", "64M")
	viper.SetDefault("webserver.maxfilesize", "20M")
	viper.SetDefault("webserver.ratelimit.enabled", true)
	viper.SetDefault("webserver.ratelimit.rate", 0.2)
	viper.SetDefault("webserver.ratelimit.burst", 5)
	viper.SetDefault("webserver.ratelimit.expiresin", 10*time.Minute)
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("security.adminuser", "admin")
	viper.SetDefault("security.adminpasswordhash", "")
	viper.SetDefault("security.adminemail", "")
	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.securecookies", false)

	viper.SetDefault("intake.recipientemail", "")
	viper.SetDefault("intake.sparepartsurl", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "storm.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "storm")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "storm")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.local.path", "uploads")
	viper.SetDefault("storage.local.publicurl", "/media")
	viper.SetDefault("storage.s3.region", "us-east-1")
	viper.SetDefault("storage.s3.prefix", "defect-reports")
	viper.SetDefault("storage.s3.usepathstyle", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.url", "")
	viper.SetDefault("notification.timeout", 15*time.Second)

	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
	viper.SetDefault("telemetry.sentry.environment", "production")
	viper.SetDefault("telemetry.sentry.samplerate", 1.0)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/storm-intake.log")
	viper.SetDefault("logging.file_output.level", "info")
}
