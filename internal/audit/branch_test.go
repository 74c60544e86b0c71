package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func githubServer(t *testing.T, handler http.HandlerFunc) *GitHubSource {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := NewGitHubSource(context.Background(), "test-token", "poutila", "doxstrux", "main")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	src.Client.BaseURL = base
	return src
}

func TestGitHubSource(t *testing.T) {
	var gotPath, gotAuth string
	src := githubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"strict":true,"contexts":["build","lint"],"checks":[{"context":"doxstrux-audit","app_id":1},{"context":"build"}]}`))
	})

	checks, err := src.RequiredChecks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/repos/poutila/doxstrux/branches/main/protection/required_status_checks", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, []string{"build", "doxstrux-audit", "lint"}, checks)
	assert.Equal(t, "github:poutila/doxstrux@main", src.Describe())
}

func TestGitHubSourceUnprotectedBranch(t *testing.T) {
	src := githubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Branch not protected"}`))
	})

	checks, err := src.RequiredChecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestGitHubSourceFailure(t *testing.T) {
	src := githubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := src.RequiredChecks(context.Background())
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "branch-protection.yml")
	writeFile(t, path, "branch: main\nrequired_status_checks:\n  - lint\n  - doxstrux-audit\n  - lint\n")

	src := &FileSource{Path: path}
	checks, err := src.RequiredChecks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"doxstrux-audit", "lint"}, checks)

	missing := &FileSource{Path: filepath.Join(dir, "none.yml")}
	checks, err = missing.RequiredChecks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, checks)

	bad := filepath.Join(dir, "bad.yml")
	writeFile(t, bad, "required_status_checks: [unterminated\n")
	_, err = (&FileSource{Path: bad}).RequiredChecks(context.Background())
	assert.Error(t, err)
}

func TestMissingChecks(t *testing.T) {
	assert.Nil(t, missingChecks([]string{"a"}, []string{"a", "b"}))
	assert.Equal(t, []string{"c"}, missingChecks([]string{"a", "c"}, []string{"a", "b"}))
	assert.Nil(t, missingChecks(nil, []string{"a"}))
}

func TestUnpinnedDependencies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	writeFile(t, path, `module example.com/app

go 1.24

require github.com/single/dep v0.0.0-20200823014737-9f7001d12a5f

require (
	github.com/ok/dep v1.2.3
	github.com/pre/dep v1.2.4-0.20191109021931-daa7c04131f5 // indirect
	github.com/rc/dep/v2 v2.0.0-rc.1
)

replace github.com/ok/dep => ../local/dep

replace (
	github.com/fork/dep => github.com/me/dep v1.0.0
	github.com/abs/dep v1.0.0 => /srv/dep
)
`)

	got, err := UnpinnedDependencies(path)
	require.NoError(t, err)

	want := []Unpinned{
		{Module: "github.com/single/dep", Version: "v0.0.0-20200823014737-9f7001d12a5f", Reason: "pseudo-version"},
		{Module: "github.com/pre/dep", Version: "v1.2.4-0.20191109021931-daa7c04131f5", Reason: "pseudo-version (indirect)"},
		{Module: "github.com/ok/dep", Reason: "replaced by local path ../local/dep"},
		{Module: "github.com/abs/dep", Reason: "replaced by local path /srv/dep"},
	}
	assert.Equal(t, want, got)

	none, err := UnpinnedDependencies(filepath.Join(t.TempDir(), "go.mod"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUnpinnedDependenciesMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.mod")
	writeFile(t, path, "module example.com/app\n\nrequire github.com/x/dep not-a-version\n")

	_, err := UnpinnedDependencies(path)
	assert.Error(t, err)
}
