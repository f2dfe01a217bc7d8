// Package version holds build metadata injected with ldflags, e.g.
// -X git.home.luguber.info/inful/docsetbot/internal/version.Version=v0.3.0.
package version

import "fmt"

var (
	Version   = "unknown"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the line printed by --version.
func String() string {
	return fmt.Sprintf("docsetbot %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
