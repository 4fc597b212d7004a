// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X git.home.luguber.info/inful/shadowjar/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release version of the shadowjar binary.
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata as served by the query surface.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Current returns the linked build metadata.
func Current() Info {
	return Info{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit}
}

// String renders the metadata for --version output.
func String() string {
	return fmt.Sprintf("shadowjar %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
