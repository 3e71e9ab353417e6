package version

import (
	"runtime/debug"
	"sync"
)

// Version is the current semantic version of assetindex
const Version = "0.1.0"

// Set during build time with -ldflags "-X ...version.GitCommit=..."
var (
	BuildDate = "development"
	GitCommit = "unknown"
)

func Info() string {
	return Version
}

// FullInfo returns the version with the commit recorded by the build.
func FullInfo() string {
	return "assetindex " + Version + " (commit: " + commit() + ", built: " + BuildDate + ")"
}

var (
	vcsCommit     string
	vcsCommitOnce sync.Once
)

// commit prefers the ldflags value and falls back to the VCS stamp of the binary.
func commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	vcsCommitOnce.Do(func() {
		vcsCommit = "unknown"
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				vcsCommit = s.Value[:12]
			}
		}
	})
	return vcsCommit
}
