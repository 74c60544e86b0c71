package audit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poutila/doxstrux/internal/performance"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func writeSignedBaseline(t *testing.T, dir string, priv ed25519.PrivateKey, signer string, created time.Time) string {
	t.Helper()
	b := NewBaseline(map[string]float64{
		performance.MetricP50MS:      1,
		performance.MetricP95MS:      2,
		performance.MetricDocsPerSec: 100,
	}, signer, created)
	require.NoError(t, b.Sign(priv))

	path := filepath.Join(dir, "baseline.json")
	require.NoError(t, b.Save(path))
	return path
}

// staticSource is a BranchProtectionSource with fixed answers.
type staticSource struct {
	checks []string
	err    error
}

func (s staticSource) RequiredChecks(context.Context) ([]string, error) { return s.checks, s.err }
func (s staticSource) Describe() string                                 { return "static" }

// passingInputs returns inputs under which every check passes.
func passingInputs(t *testing.T) Inputs {
	t.Helper()
	dir := t.TempDir()
	pub, priv := newKey(t)

	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(src, "main.go"), "package main\n\nfunc main() {}\n")

	return Inputs{
		BaselinePath:     writeSignedBaseline(t, dir, priv, "ci", testNow.Add(-24*time.Hour)),
		TrustedKeys:      map[string]ed25519.PublicKey{"ci": pub},
		MaxBaselineAge:   30 * 24 * time.Hour,
		Scanner:          &Scanner{Roots: []string{src}},
		Registry:         &Registry{},
		BranchProtection: staticSource{checks: []string{"build", "doxstrux-audit"}},
		RequiredChecks:   []string{"doxstrux-audit"},
		Thresholds:       performance.DefaultThresholds(),
	}
}

func runGate(t *testing.T, in Inputs) *Verdict {
	t.Helper()
	g := NewGate(in, nil)
	g.now = func() time.Time { return testNow }
	v, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDecided, g.State())
	return v
}
