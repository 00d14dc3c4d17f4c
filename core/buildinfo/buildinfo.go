// Package buildinfo carries version metadata stamped into the binary.
package buildinfo

// Set through -ldflags, for example:
//
//	go build -ldflags "-X 'github.com/mkorobov/tickertrack/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/mkorobov/tickertrack/core/buildinfo.Commit=abcdef0' \
//	  -X 'github.com/mkorobov/tickertrack/core/buildinfo.Date=2026-08-29T12:00:00Z'"
//
// Unstamped binaries report the dev defaults.
var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the build timestamp, RFC3339.
	Date = ""
)
