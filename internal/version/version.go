package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version, overridden via ldflags at release time.
	Version = "0.1.0"
	// Commit is the short git SHA embedded at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns the semantic version.
func Short() string {
	return Version
}

// Full returns the version with commit, build time and Go runtime.
func Full() string {
	return fmt.Sprintf("door-actuator %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the product token sent by clients and servers.
func UserAgent(component string) string {
	return fmt.Sprintf("%s/%s", component, Version)
}
