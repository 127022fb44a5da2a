package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel string            `yaml:"default_level" mapstructure:"default_level" json:"default_level"` // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone" json:"timezone"`                // "Local", "UTC", or an IANA name
	Console      *ConsoleOutput    `yaml:"console" mapstructure:"console" json:"console"`
	FileOutput   *FileOutput       `yaml:"file_output" mapstructure:"file_output" json:"file_output"`
	ModuleLevels map[string]string `yaml:"module_levels" mapstructure:"module_levels" json:"module_levels"` // per-module overrides, e.g. datastore: trace
}

// ConsoleOutput represents console logging configuration.
// Console output is text without timestamps; journald or Docker add them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// FileOutput represents file logging configuration. File output is JSON
// with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" json:"path"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// Default values for logging configuration, mirrored in conf defaults.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/storm-intake.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults fills nil sections so older config files keep
// console logging enabled.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.ModuleLevels == nil {
		cfg.ModuleLevels = make(map[string]string)
	}
}
