// Package version holds build information for SubRelay binaries.
package version

import (
	"fmt"
	"runtime"
)

// Product is the name reported in version strings and user agents.
const Product = "SubRelay"

// Set at build time via -ldflags "-X github.com/rzbill/subrelay/pkg/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

func shortCommit() string {
	if len(Commit) > 8 {
		return Commit[:8]
	}
	return Commit
}

// Info returns version information as a formatted string.
func Info() string {
	return fmt.Sprintf("%s %s (%s) - %s %s/%s",
		Product,
		Version,
		shortCommit(),
		BuildTime,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// UserAgent is sent by the admin client.
func UserAgent() string {
	return fmt.Sprintf("subrelay-cli/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// Map returns version information as a map, as served by /version.
func Map() map[string]string {
	return map[string]string{
		"version":   Version,
		"commit":    Commit,
		"buildTime": BuildTime,
		"goVersion": runtime.Version(),
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
}
