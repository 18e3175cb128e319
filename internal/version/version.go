// Package version exposes build version information.
package version

// Version is overridden at build time via
// -ldflags "-X github.com/knyar/urconf/internal/version.Version=...".
var Version = "dev"

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return "urconf " + Version
}
