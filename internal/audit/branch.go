package audit

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v2"
)

// BranchProtectionSource reports which status checks a branch requires
// before merging. An unprotected branch returns an empty list.
type BranchProtectionSource interface {
	RequiredChecks(ctx context.Context) ([]string, error)
	Describe() string
}

// requiredStatusChecks is the subset of the GitHub response we read.
type requiredStatusChecks struct {
	Strict   bool     `json:"strict"`
	Contexts []string `json:"contexts"`
	Checks   []struct {
		Context string `json:"context"`
	} `json:"checks"`
}

// GitHubSource queries the branch protection API.
type GitHubSource struct {
	Client *github.Client
	Owner  string
	Repo   string
	Branch string
}

// NewGitHubSource builds a source authenticated with token. An empty
// token makes unauthenticated requests, which GitHub only answers for
// public repositories.
func NewGitHubSource(ctx context.Context, token, owner, repo, branch string) *GitHubSource {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	return &GitHubSource{
		Client: github.NewClient(hc),
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
	}
}

func (s *GitHubSource) Describe() string {
	return fmt.Sprintf("github:%s/%s@%s", s.Owner, s.Repo, s.Branch)
}

func (s *GitHubSource) RequiredChecks(ctx context.Context) ([]string, error) {
	u := fmt.Sprintf("repos/%v/%v/branches/%v/protection/required_status_checks", s.Owner, s.Repo, s.Branch)
	req, err := s.Client.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var checks requiredStatusChecks
	resp, err := s.Client.Do(ctx, req, &checks)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("querying branch protection for %s: %w", s.Describe(), err)
	}

	names := append([]string(nil), checks.Contexts...)
	for _, c := range checks.Checks {
		names = append(names, c.Context)
	}
	return dedupe(names), nil
}

// protectionFile is the on-disk description of branch protection, for
// hosts without an API or for offline runs.
type protectionFile struct {
	Branch               string   `yaml:"branch"`
	RequiredStatusChecks []string `yaml:"required_status_checks"`
}

// FileSource reads required checks from a YAML file.
type FileSource struct {
	Path string
}

func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

// RequiredChecks treats a missing file as an unprotected branch.
func (s *FileSource) RequiredChecks(context.Context) ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var pf protectionFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.Path, err)
	}
	return dedupe(pf.RequiredStatusChecks), nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// missingChecks returns the wanted checks absent from have.
func missingChecks(want, have []string) []string {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	var missing []string
	for _, w := range want {
		if !set[w] {
			missing = append(missing, w)
		}
	}
	return missing
}
