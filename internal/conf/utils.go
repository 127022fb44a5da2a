// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/labstack/gommon/bytes"

	"github.com/tphakala/storm-intake/internal/errors"
)

const appDirName = "storm-intake"

// Storage backend names
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// GetDefaultConfigPaths returns the configuration search paths for the
// current OS. When one of them already holds config.yaml only that path
// is returned.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	if runtime.GOOS == "windows" {
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	} else {
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDirName),
			filepath.Join("/etc", appDirName),
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// ParseByteSize parses sizes like "20M" or "64MB" into bytes
func ParseByteSize(value string) (int64, error) {
	n, err := bytes.Parse(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("value", value).
			Build()
	}
	return n, nil
}

// MaxFileSizeBytes returns the single file cap in bytes, zero when unset
func (s *Settings) MaxFileSizeBytes() int64 {
	if s.WebServer.MaxFileSize == "" {
		return 0
	}
	n, err := ParseByteSize(s.WebServer.MaxFileSize)
	if err != nil {
		return 0
	}
	return n
}

func isBcryptHash(value string) bool {
	return len(value) == 60 && (strings.HasPrefix(value, "$2a$") ||
		strings.HasPrefix(value, "$2b$") ||
		strings.HasPrefix(value, "$2y$"))
}
