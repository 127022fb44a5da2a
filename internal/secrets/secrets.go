// Package secrets resolves credentials referenced from the configuration.
// A credential can come from a mounted secret file (Docker or Kubernetes
// secrets) or from ${VAR} references to environment variables.
//
// Secret values are never logged.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/storm-intake/internal/logger"
)

const (
	// maxSecretFileSize limits secret file reads; secrets are tokens and
	// passwords, not documents
	maxSecretFileSize = 64 * 1024

	// groupOtherPerms are the permission bits that trigger a warning
	groupOtherPerms = 0o077
)

// refPattern matches ${VAR} and ${VAR:-default}. A bare $ is left alone,
// bcrypt hashes and SMTP passwords often contain one.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Resolver reads secrets from a filesystem and an environment
type Resolver struct {
	fs     afero.Fs
	getenv func(string) string
}

// New creates a resolver. nil arguments select the OS filesystem and
// environment.
func New(fs afero.Fs, getenv func(string) string) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{fs: fs, getenv: getenv}
}

// Default returns a resolver on the OS filesystem and environment
func Default() *Resolver {
	return New(nil, nil)
}

// GetLogger returns the secrets package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("secrets")
}

// Expand replaces ${VAR} and ${VAR:-default} references. A reference
// without default to an unset or empty variable is an error.
func (r *Resolver) Expand(s string) (string, error) {
	var missing []string

	expanded := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := refPattern.FindStringSubmatch(ref)
		name, hasDefault := m[1], strings.Contains(ref, ":-")

		if value := r.getenv(name); value != "" {
			return value
		}
		if hasDefault {
			return m[2]
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret file. Trailing newlines are trimmed; an empty
// file is an error.
func (r *Resolver) ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}
	cleanPath := filepath.Clean(path)

	info, err := r.fs.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	if perm := info.Mode().Perm(); perm&groupOtherPerms != 0 {
		GetLogger().Warn("secret file is readable by group or others",
			logger.String("path", cleanPath),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := afero.ReadFile(r.fs, cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value
// with its environment references expanded.
func (r *Resolver) Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := r.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file: %w", err)
		}
		return secret, nil
	}
	if value == "" {
		return "", nil
	}
	return r.Expand(value)
}

// Field is one configurable secret
type Field struct {
	Name   string  // config key, used in error messages
	File   string  // optional secret file path
	Target *string // value to resolve in place
}

// ResolveFields resolves every field in place. All failures are
// reported together; fields that failed keep their original value.
func (r *Resolver) ResolveFields(fields ...Field) error {
	var errs []error
	for _, f := range fields {
		value, err := r.Resolve(f.File, *f.Target)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		*f.Target = value
	}
	return errors.Join(errs...)
}
