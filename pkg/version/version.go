// Package version stamps build-time identification onto the rcaectl binary.
package version

import "fmt"

// Version and CommitHash are set at build time with -ldflags. Defaults are
// useful for local development.
var (
	Version    string = "dev"
	CommitHash string = "unknown"
)

// Describe returns a single human-readable line for --version output.
func Describe() string {
	return fmt.Sprintf("rcaectl %s (%s)", Version, CommitHash)
}
