// Package version exposes build metadata set via -ldflags.
package version

import "fmt"

var (
	// Version is the release version.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// Date is the build date.
	Date = "unknown"
)

// String returns a human-readable version line.
func String() string {
	return fmt.Sprintf("stencil %s (commit %s, built %s)", Version, Commit, Date)
}
