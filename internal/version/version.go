// Package version carries build metadata injected with ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/batchmon/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the one-line version shown by `batchmon --version`.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return "batchmon " + Version
	}
	return fmt.Sprintf("batchmon %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
