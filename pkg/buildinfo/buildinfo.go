// Package buildinfo exposes build-time metadata injected via ldflags.
package buildinfo

import "fmt"

// Populated at build time:
//
//	go build -ldflags "-X github.com/oriel-shell/oriel/pkg/buildinfo.Version=v1.2.3 ..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("oriel %s (commit=%s, date=%s)", Version, Commit, Date)
}
