package audit

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/performance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatePass(t *testing.T) {
	v := runGate(t, passingInputs(t))

	assert.Equal(t, DecisionPass, v.Decision)
	assert.Equal(t, errors.ExitOK, v.ExitCode)
	assert.Equal(t, StatusOK, v.BaselineStatus)
	assert.Equal(t, StatusOK, v.BranchProtectionStatus)
	assert.Empty(t, v.UnregisteredHits)
	assert.Empty(t, v.Findings)
	assert.NoError(t, v.Err())

	_, err := uuid.Parse(v.RunID)
	assert.NoError(t, err)
}

func TestGateRunIDsDiffer(t *testing.T) {
	in := passingInputs(t)
	assert.NotEqual(t, runGate(t, in).RunID, runGate(t, in).RunID)
}

func TestGateBaselineMissing(t *testing.T) {
	in := passingInputs(t)
	in.BaselinePath = filepath.Join(t.TempDir(), "none.json")

	v := runGate(t, in)

	assert.Equal(t, DecisionFailFatal, v.Decision)
	assert.Equal(t, errors.ExitBaselineMissing, v.ExitCode)
	assert.Equal(t, StatusMissing, v.BaselineStatus)
	assert.Equal(t, StatusNotChecked, v.BranchProtectionStatus, "fatal result must short-circuit")
	assert.ErrorIs(t, v.Err(), errors.ErrBaselineMissing)
	assert.Equal(t, errors.ExitBaselineMissing, errors.ExitCode(v.Err()))
	require.Len(t, v.Findings, 1)
	assert.Equal(t, errors.SeverityFatal, v.Findings[0].Severity)
}

func TestGateBaselineUnsigned(t *testing.T) {
	tamper := map[string]func(t *testing.T, in *Inputs){
		"no signature": func(t *testing.T, in *Inputs) {
			rewriteBaseline(t, in.BaselinePath, func(b *Baseline) { b.Signature = "" })
		},
		"tampered metrics": func(t *testing.T, in *Inputs) {
			rewriteBaseline(t, in.BaselinePath, func(b *Baseline) { b.Metrics[performance.MetricP95MS] = 0.5 })
		},
		"tampered timestamp": func(t *testing.T, in *Inputs) {
			rewriteBaseline(t, in.BaselinePath, func(b *Baseline) { b.CreatedAt = b.CreatedAt.Add(time.Hour) })
		},
		"unknown signer": func(t *testing.T, in *Inputs) {
			in.TrustedKeys = map[string]ed25519.PublicKey{}
		},
		"wrong key": func(t *testing.T, in *Inputs) {
			other, _ := newKey(t)
			in.TrustedKeys = map[string]ed25519.PublicKey{"ci": other}
		},
		"garbage signature": func(t *testing.T, in *Inputs) {
			rewriteBaseline(t, in.BaselinePath, func(b *Baseline) { b.Signature = "!!!" })
		},
		"invalid json": func(t *testing.T, in *Inputs) {
			writeFile(t, in.BaselinePath, "{not json")
		},
	}

	for name, apply := range tamper {
		t.Run(name, func(t *testing.T) {
			in := passingInputs(t)
			apply(t, &in)

			v := runGate(t, in)

			assert.Equal(t, DecisionFailFatal, v.Decision)
			assert.Equal(t, errors.ExitBaselineUnsigned, v.ExitCode)
			assert.Equal(t, StatusUnsigned, v.BaselineStatus)
			assert.ErrorIs(t, v.Err(), errors.ErrBaselineUnsigned)
			assert.Equal(t, StatusNotChecked, v.BranchProtectionStatus)
		})
	}
}

func rewriteBaseline(t *testing.T, path string, mutate func(*Baseline)) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var b Baseline
	require.NoError(t, json.Unmarshal(data, &b))
	mutate(&b)
	require.NoError(t, b.Save(path))
}

func TestGateStaleBaselineIsAdvisory(t *testing.T) {
	in := passingInputs(t)
	pub, priv := newKey(t)
	in.BaselinePath = writeSignedBaseline(t, t.TempDir(), priv, "ci", testNow.Add(-90*24*time.Hour))
	in.TrustedKeys = map[string]ed25519.PublicKey{"ci": pub}

	v := runGate(t, in)

	assert.Equal(t, DecisionFailAdvisory, v.Decision)
	assert.Equal(t, errors.ExitOK, v.ExitCode)
	assert.Equal(t, StatusStale, v.BaselineStatus)
	assert.Equal(t, StatusOK, v.BranchProtectionStatus, "advisory must not short-circuit")
	require.Len(t, v.Findings, 1)
	assert.Equal(t, KindBaselineStale, v.Findings[0].Kind)
	assert.Equal(t, errors.SeverityAdvisory, v.Findings[0].Severity)
	assert.NoError(t, v.Err())
}

func TestGateUnregisteredRenderer(t *testing.T) {
	in := passingInputs(t)
	root := in.Scanner.Roots[0]
	writeFile(t, filepath.Join(root, "web", "page.go"), "package web\n\nvar out = template.HTML(userInput)\n")

	v := runGate(t, in)

	assert.Equal(t, DecisionFailFatal, v.Decision)
	assert.Equal(t, errors.ExitUnregisteredRenderer, v.ExitCode)
	require.Len(t, v.UnregisteredHits, 1)
	assert.Equal(t, "web/page.go", v.UnregisteredHits[0].Path)
	assert.Equal(t, 3, v.UnregisteredHits[0].Line)
	assert.Equal(t, StatusOK, v.BaselineStatus)
	assert.Equal(t, StatusNotChecked, v.BranchProtectionStatus)
	assert.ErrorIs(t, v.Err(), errors.ErrUnregisteredRenderer)
}

func TestGateUnregisteredRendererInLargeFile(t *testing.T) {
	in := passingInputs(t)
	root := in.Scanner.Roots[0]
	padding := "// " + strings.Repeat("x", 2<<20) + "\n"
	writeFile(t, filepath.Join(root, "big.go"), "package big\n"+padding+"var out = template.HTML(userInput)\n")

	v := runGate(t, in)

	assert.Equal(t, DecisionFailFatal, v.Decision)
	assert.Equal(t, errors.ExitUnregisteredRenderer, v.ExitCode)
	require.Len(t, v.UnregisteredHits, 1)
	assert.Equal(t, "big.go", v.UnregisteredHits[0].Path)
	assert.Equal(t, 3, v.UnregisteredHits[0].Line)
}

func TestGateRegisteredRenderer(t *testing.T) {
	in := passingInputs(t)
	root := in.Scanner.Roots[0]
	writeFile(t, filepath.Join(root, "web", "page.go"), "package web\n\nvar out = template.HTML(clean)\n")
	in.Registry = &Registry{Consumers: []Consumer{{Name: "web-pages", Paths: []string{"web/..."}}}}

	v := runGate(t, in)

	assert.Equal(t, DecisionPass, v.Decision)
	assert.Equal(t, 1, v.RegisteredHits)
}

func TestGateBranchProtection(t *testing.T) {
	t.Run("no required checks", func(t *testing.T) {
		in := passingInputs(t)
		in.BranchProtection = staticSource{}

		v := runGate(t, in)

		assert.Equal(t, errors.ExitBranchProtectionMissing, v.ExitCode)
		assert.Equal(t, StatusMissing, v.BranchProtectionStatus)
		assert.ErrorIs(t, v.Err(), errors.ErrBranchProtectionMissing)
	})

	t.Run("required check not enforced", func(t *testing.T) {
		in := passingInputs(t)
		in.BranchProtection = staticSource{checks: []string{"build"}}

		v := runGate(t, in)

		assert.Equal(t, errors.ExitBranchProtectionMissing, v.ExitCode)
		require.Len(t, v.Findings, 1)
		assert.Contains(t, v.Findings[0].Message, "doxstrux-audit")
	})

	t.Run("source failure is an error", func(t *testing.T) {
		in := passingInputs(t)
		in.BranchProtection = staticSource{err: assert.AnError}

		g := NewGate(in, nil)
		_, err := g.Run(context.Background())
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, StateDiscoveryChecked, g.State())
	})

	t.Run("no source configured", func(t *testing.T) {
		in := passingInputs(t)
		in.BranchProtection = nil

		_, err := NewGate(in, nil).Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrConfigInvalid)
	})
}

func TestGateAdvisories(t *testing.T) {
	in := passingInputs(t)
	gomod := filepath.Join(t.TempDir(), "go.mod")
	writeFile(t, gomod, "module example.com/x\n\nrequire example.com/dep v0.0.0-20200823014737-9f7001d12a5f\n")
	in.GoModPath = gomod
	in.Observations = map[string]float64{performance.MetricP95MS: 10}

	v := runGate(t, in)

	assert.Equal(t, DecisionFailAdvisory, v.Decision)
	assert.Equal(t, errors.ExitOK, v.ExitCode)

	kinds := make([]string, 0, len(v.Findings))
	for _, f := range v.Findings {
		kinds = append(kinds, f.Kind)
		assert.Equal(t, errors.SeverityAdvisory, f.Severity)
	}
	assert.ElementsMatch(t, []string{KindPerformanceRegression, KindUnpinnedDependency}, kinds)
}

func TestGateFatalSkipsAdvisories(t *testing.T) {
	in := passingInputs(t)
	in.BaselinePath = filepath.Join(t.TempDir(), "missing.json")
	gomod := filepath.Join(t.TempDir(), "go.mod")
	writeFile(t, gomod, "module example.com/x\n\nreplace example.com/dep => ../dep\n")
	in.GoModPath = gomod

	v := runGate(t, in)

	require.Len(t, v.Findings, 1)
	assert.Equal(t, KindBaselineMissing, v.Findings[0].Kind)
}

func TestGateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGate(passingInputs(t), nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerdictJSON(t *testing.T) {
	v := runGate(t, passingInputs(t))

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "decided", got["state"])
	assert.Equal(t, "pass", got["decision"])
	assert.EqualValues(t, 0, got["exit_code"])
	assert.Equal(t, []any{}, got["unregistered_hits"])
}
