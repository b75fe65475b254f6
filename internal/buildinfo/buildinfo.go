// Package buildinfo holds version and build metadata stamped at compile time via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

// startTime records when the process started.
var startTime = time.Now()

// Info returns all build and runtime info as a map. module_version
// identifies `go install` builds that carry no ldflags.
func Info() map[string]string {
	return map[string]string{
		"version":        Version,
		"module_version": ModuleVersion(),
		"git_commit":     GitCommit,
		"git_branch":     GitBranch,
		"build_time":     BuildTime,
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"uptime":         Uptime().String(),
	}
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// UserAgent returns the User-Agent sent on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("airspace-copilot/%s (+%s)", Version, runtime.Version())
}

// ModuleVersion reports the main module version recorded by the Go
// toolchain, which is set for `go install` builds without ldflags.
func ModuleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("airspace-copilot %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
