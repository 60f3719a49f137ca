// Package version reports the emsolve release and build provenance.
package version

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionFile string

// Release builds inject these:
//
//	go build -ldflags "-X github.com/emalign/emsolve/internal/version.gitCommit=... \
//	                   -X github.com/emalign/emsolve/internal/version.buildDate=..."
//
// go install builds fall back to VCS stamps from the build info.
var (
	gitCommit string
	buildDate string
)

// Info is what `emsolve version` prints.
type Info struct {
	Version   string // semantic version from the embedded VERSION file
	GitCommit string // short commit hash, "-dirty" when the tree was modified
	BuildDate string // ISO 8601 build timestamp, or "unknown"
}

func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s",
		i.Version, i.GitCommit, i.BuildDate)
}

// Get resolves the version info for the running binary.
func Get() Info {
	commit := gitCommit
	if commit == "" {
		commit = vcsCommit()
	}
	if commit == "" {
		commit = "unknown"
	}

	date := buildDate
	if date == "" {
		date = "unknown"
	}

	return Info{
		Version:   strings.TrimSpace(versionFile),
		GitCommit: commit,
		BuildDate: date,
	}
}

// vcsCommit reads the commit from debug.ReadBuildInfo, shortened to 7 chars,
// or returns "" when no VCS stamp is present.
func vcsCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return ""
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		revision += "-dirty"
	}
	return revision
}
