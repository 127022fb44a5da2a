// Package buildinfo holds build-time metadata kept apart from user configuration
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not inject
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata
type BuildInfo interface {
	// Version returns the build version string
	Version() string
	// BuildDate returns the build date string
	BuildDate() string
}

// Context contains build-time metadata injected at startup through
// linker flags. It is not part of the configuration system.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a build context
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version implements BuildInfo.Version
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate implements BuildInfo.BuildDate
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// Release returns the Sentry release name
func (c *Context) Release() string {
	return "storm-intake@" + c.Version()
}

// String returns the line printed by --version
func (c *Context) String() string {
	return fmt.Sprintf("storm-intake %s (built %s)", c.Version(), c.BuildDate())
}
