// Package version reports doxstrux build information. Release builds set
// the variables below with -ldflags; other builds fall back to the module
// and VCS data embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/poutila/doxstrux/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the build information for the running binary.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev := settings["vcs.revision"]; rev != "" {
			info.GitCommit = rev
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseTime(settings["vcs.time"])
	}
	info.Dirty = settings["vcs.modified"] == "true"

	if info.Version == "" || info.Version == "dev" {
		switch {
		case bi.Main.Version != "" && bi.Main.Version != "(devel)":
			info.Version = bi.Main.Version
		case len(info.GitCommit) >= 7 && info.GitCommit != "unknown":
			info.Version = "dev-" + info.GitCommit[:7]
		default:
			info.Version = "dev"
		}
	}
	return info
}

// Short is the one-line form printed by `doxstrux version`.
func (b BuildInfo) Short() string {
	s := "doxstrux " + b.Version
	if len(b.GitCommit) >= 7 && b.GitCommit != "unknown" && !strings.HasPrefix(b.Version, "dev-") {
		s += " (" + b.GitCommit[:7] + ")"
	}
	if b.Dirty {
		s += " (dirty)"
	}
	return s
}

// Detailed lists every known field, one per line.
func (b BuildInfo) Detailed() string {
	lines := []string{"Version: " + b.Version}
	if b.GitCommit != "unknown" && b.GitCommit != "" {
		lines = append(lines, "Commit: "+b.GitCommit)
	}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "Built: "+b.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines,
		"Go: "+b.GoVersion,
		"Platform: "+b.Platform,
		fmt.Sprintf("Dirty: %t", b.Dirty),
	)
	return strings.Join(lines, "\n")
}

// IsRelease reports whether this is a tagged build.
func (b BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

// parseTime accepts the formats release scripts tend to produce.
func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
