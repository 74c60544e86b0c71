package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, ok }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGetFromLdflags(t *testing.T) {
	withBuildInfo(t, nil, false)
	Version, GitCommit, BuildTime = "v1.2.0", "0123456789abcdef", "2024-06-01T12:00:00Z"
	t.Cleanup(func() { Version, GitCommit, BuildTime = "dev", "unknown", "unknown" })

	info := Get()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "doxstrux v1.2.0 (0123456)", info.Short())
	assert.True(t, info.IsRelease())
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), info.BuildTime)
	assert.Contains(t, info.Detailed(), "Commit: 0123456789abcdef")
}

func TestGetFromVCS(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "fedcba9876543210"},
			{Key: "vcs.time", Value: "2024-05-01T08:30:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}, true)

	info := Get()
	assert.Equal(t, "dev-fedcba9", info.Version)
	assert.Equal(t, "fedcba9876543210", info.GitCommit)
	assert.True(t, info.Dirty)
	assert.False(t, info.IsRelease())
	assert.Equal(t, "doxstrux dev-fedcba9 (dirty)", info.Short())
	assert.Equal(t, 2024, info.BuildTime.Year())
}

func TestGetModuleVersion(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}}, true)

	info := Get()
	assert.Equal(t, "v0.3.1", info.Version)
	assert.Equal(t, "doxstrux v0.3.1", info.Short())
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.False(t, parseTime("2024-06-01 10:00:00").IsZero())
}
