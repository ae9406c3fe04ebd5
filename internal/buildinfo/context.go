// Package buildinfo holds build-time metadata kept apart from user configuration.
package buildinfo

import (
	"runtime/debug"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetSystemID() string
}

// Context contains metadata injected at startup through -ldflags. It is
// never part of the configuration system.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID identifies this process in telemetry and health output
	SystemID string
}

// NewContext creates a Context. An empty version falls back to the module
// version recorded by the Go toolchain, and an empty systemID to a random
// id for this process.
func NewContext(version, buildDate, systemID string) *Context {
	if version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	if systemID == "" {
		systemID = uuid.NewString()
	}
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetSystemID implements BuildInfo.GetSystemID
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}
