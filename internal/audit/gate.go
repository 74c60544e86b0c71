// Package audit implements the green-light gate: a fixed sequence of
// machine-checkable preconditions that decides whether a build may ship.
//
// The gate checks, in order, that a signed performance baseline is present
// and verified, that every HTML-rendering sink in the source tree belongs to
// a registered consumer, and that the default branch enforces the required
// status checks. A fatal finding stops the sequence and fixes the exit code;
// advisory findings are recorded and never change it. Severity belongs to
// the finding kind and cannot be configured.
package audit

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/performance"
)

// State is the gate's position in its check sequence.
type State int

const (
	StateNotRun State = iota
	StateBaselineChecked
	StateDiscoveryChecked
	StateBranchProtectionChecked
	StateDecided
)

func (s State) String() string {
	switch s {
	case StateNotRun:
		return "not_run"
	case StateBaselineChecked:
		return "baseline_checked"
	case StateDiscoveryChecked:
		return "discovery_checked"
	case StateBranchProtectionChecked:
		return "branch_protection_checked"
	case StateDecided:
		return "decided"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Decision is the outcome once the gate reaches StateDecided.
type Decision string

const (
	DecisionPass         Decision = "pass"
	DecisionFailAdvisory Decision = "fail_advisory"
	DecisionFailFatal    Decision = "fail_fatal"
)

// Baseline and branch protection statuses.
const (
	StatusOK         = "ok"
	StatusMissing    = "missing"
	StatusUnsigned   = "unsigned"
	StatusStale      = "stale"
	StatusNotChecked = "not_checked"
)

// Finding kinds. The severity of each is fixed in kindSeverity.
const (
	KindBaselineMissing         = "baseline_missing"
	KindBaselineUnsigned        = "baseline_unsigned"
	KindBaselineStale           = "baseline_stale"
	KindUnregisteredRenderer    = "unregistered_renderer"
	KindBranchProtectionMissing = "branch_protection_missing"
	KindUnpinnedDependency      = "unpinned_dependency"
	KindPerformanceRegression   = "performance_regression"
)

var kindSeverity = map[string]errors.Severity{
	KindBaselineMissing:         errors.SeverityFatal,
	KindBaselineUnsigned:        errors.SeverityFatal,
	KindUnregisteredRenderer:    errors.SeverityFatal,
	KindBranchProtectionMissing: errors.SeverityFatal,
	KindBaselineStale:           errors.SeverityAdvisory,
	KindUnpinnedDependency:      errors.SeverityAdvisory,
	KindPerformanceRegression:   errors.SeverityAdvisory,
}

// Finding is one recorded gate result.
type Finding struct {
	Kind     string          `json:"kind" yaml:"kind"`
	Severity errors.Severity `json:"severity" yaml:"severity"`
	Message  string          `json:"message" yaml:"message"`
}

// Verdict is the structured outcome of one gate run.
type Verdict struct {
	RunID                  string    `json:"run_id" yaml:"run_id"`
	StartedAt              time.Time `json:"started_at" yaml:"started_at"`
	State                  State     `json:"state" yaml:"state"`
	Decision               Decision  `json:"decision" yaml:"decision"`
	BaselineStatus         string    `json:"baseline_status" yaml:"baseline_status"`
	UnregisteredHits       []Hit     `json:"unregistered_hits" yaml:"unregistered_hits"`
	RegisteredHits         int       `json:"registered_hits" yaml:"registered_hits"`
	BranchProtectionStatus string    `json:"branch_protection_status" yaml:"branch_protection_status"`
	Findings               []Finding `json:"findings" yaml:"findings"`
	ExitCode               int       `json:"exit_code" yaml:"exit_code"`

	fatal *errors.Error
}

// Err returns the fatal error that decided the run, or nil. Its exit code
// is the verdict's.
func (v *Verdict) Err() error {
	if v.fatal == nil {
		return nil
	}
	return v.fatal
}

// Inputs are the collaborators a gate run consults.
type Inputs struct {
	BaselinePath   string
	TrustedKeys    map[string]ed25519.PublicKey
	MaxBaselineAge time.Duration

	Scanner  *Scanner
	Registry *Registry

	BranchProtection BranchProtectionSource
	RequiredChecks   []string

	GoModPath string

	// Observations are current corpus metrics; nil skips the regression check.
	Observations map[string]float64
	Thresholds   performance.RegressionThresholds
}

// Gate runs the check sequence once per Run call.
type Gate struct {
	in     Inputs
	logger logging.Logger
	now    func() time.Time
	state  State
}

// NewGate creates a gate in StateNotRun.
func NewGate(in Inputs, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gate{in: in, logger: logger.WithComponent("audit"), now: time.Now}
}

// State reports how far the last run got.
func (g *Gate) State() State { return g.state }

// Run executes the checks and returns the verdict. A non-nil error means
// the gate could not run a check at all (I/O, API failure); fatal
// findings are reported through the verdict.
func (g *Gate) Run(ctx context.Context) (*Verdict, error) {
	g.state = StateNotRun
	v := &Verdict{
		RunID:                  uuid.NewString(),
		StartedAt:              g.now().UTC(),
		BaselineStatus:         StatusNotChecked,
		BranchProtectionStatus: StatusNotChecked,
		UnregisteredHits:       []Hit{},
		Findings:               []Finding{},
	}
	logger := g.logger.With("run_id", v.RunID)
	op := logging.StartOperation(logger, "audit")

	steps := []struct {
		next  State
		check func(context.Context, *Verdict) error
	}{
		{StateBaselineChecked, g.checkBaseline},
		{StateDiscoveryChecked, g.checkDiscovery},
		{StateBranchProtectionChecked, g.checkBranchProtection},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step.check(ctx, v); err != nil {
			return nil, err
		}
		g.state = step.next
		v.State = step.next
		if v.fatal != nil {
			break
		}
	}

	if v.fatal == nil {
		if err := g.checkAdvisories(v); err != nil {
			return nil, err
		}
	}

	g.decide(v)
	op.End(ctx, "decision", v.Decision, "exit_code", v.ExitCode, "findings", len(v.Findings))
	return v, nil
}

func (g *Gate) decide(v *Verdict) {
	g.state = StateDecided
	v.State = StateDecided

	switch {
	case v.fatal != nil:
		v.Decision = DecisionFailFatal
		v.ExitCode = errors.ExitCode(v.fatal)
	case len(v.Findings) > 0:
		v.Decision = DecisionFailAdvisory
		v.ExitCode = errors.ExitOK
	default:
		v.Decision = DecisionPass
		v.ExitCode = errors.ExitOK
	}
}

func (g *Gate) record(v *Verdict, kind, message string) {
	v.Findings = append(v.Findings, Finding{Kind: kind, Severity: kindSeverity[kind], Message: message})
}

// fail records a fatal finding and stops the sequence.
func (g *Gate) fail(v *Verdict, kind string, err *errors.Error) {
	g.record(v, kind, err.Error())
	v.fatal = err
}

func (g *Gate) checkBaseline(ctx context.Context, v *Verdict) error {
	b, err := LoadBaseline(g.in.BaselinePath)
	if err != nil {
		var e *errors.Error
		if !errors.As(err, &e) || e.Type != errors.ErrorTypeAudit {
			return err
		}
		if errors.Is(err, errors.ErrBaselineMissing) {
			v.BaselineStatus = StatusMissing
			g.fail(v, KindBaselineMissing, e)
		} else {
			v.BaselineStatus = StatusUnsigned
			g.fail(v, KindBaselineUnsigned, e)
		}
		return nil
	}

	if err := b.Verify(g.in.TrustedKeys); err != nil {
		var e *errors.Error
		if !errors.As(err, &e) {
			return err
		}
		v.BaselineStatus = StatusUnsigned
		g.fail(v, KindBaselineUnsigned, e)
		return nil
	}

	v.BaselineStatus = StatusOK
	if g.in.MaxBaselineAge > 0 {
		if age := g.now().Sub(b.CreatedAt); age > g.in.MaxBaselineAge {
			v.BaselineStatus = StatusStale
			g.record(v, KindBaselineStale, fmt.Sprintf("baseline signed by %s is %s old (limit %s)",
				b.Signer, age.Round(time.Hour), g.in.MaxBaselineAge))
		}
	}

	if g.in.Observations != nil {
		for _, r := range performance.DetectRegressions(b.Metrics, g.in.Observations, g.in.Thresholds) {
			g.record(v, KindPerformanceRegression, r.String())
		}
	}

	g.logger.Debug(ctx, "Baseline checked", "status", v.BaselineStatus, "signer", b.Signer)
	return nil
}

func (g *Gate) checkDiscovery(ctx context.Context, v *Verdict) error {
	if g.in.Scanner == nil {
		return nil
	}

	hits, err := g.in.Scanner.Scan(ctx)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "scanning for HTML renderers")
	}

	unregistered := Unregistered(hits, g.in.Registry)
	v.RegisteredHits = len(hits) - len(unregistered)
	if len(unregistered) == 0 {
		return nil
	}

	v.UnregisteredHits = unregistered
	locations := make([]string, 0, len(unregistered))
	for _, h := range unregistered {
		locations = append(locations, fmt.Sprintf("%s:%d (%s)", h.Path, h.Line, h.Sink))
	}
	g.fail(v, KindUnregisteredRenderer, errors.NewAuditError(
		errors.ErrCodeUnregisteredRenderer,
		fmt.Sprintf("%d unregistered HTML renderer(s): %s", len(unregistered), strings.Join(locations, ", ")),
		errors.ExitUnregisteredRenderer,
	))
	return nil
}

func (g *Gate) checkBranchProtection(ctx context.Context, v *Verdict) error {
	if g.in.BranchProtection == nil {
		return errors.ConfigInvalid("no branch protection source configured", nil)
	}

	have, err := g.in.BranchProtection.RequiredChecks(ctx)
	if err != nil {
		return err
	}

	missing := missingChecks(g.in.RequiredChecks, have)
	if len(have) > 0 && len(missing) == 0 {
		v.BranchProtectionStatus = StatusOK
		return nil
	}

	msg := "no required status checks on " + g.in.BranchProtection.Describe()
	if len(have) > 0 {
		msg = fmt.Sprintf("%s does not require: %s", g.in.BranchProtection.Describe(), strings.Join(missing, ", "))
	}
	v.BranchProtectionStatus = StatusMissing
	g.fail(v, KindBranchProtectionMissing, errors.NewAuditError(
		errors.ErrCodeBranchProtectionMissing, msg, errors.ExitBranchProtectionMissing))
	return nil
}

func (g *Gate) checkAdvisories(v *Verdict) error {
	if g.in.GoModPath == "" {
		return nil
	}
	unpinned, err := UnpinnedDependencies(g.in.GoModPath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "reading "+g.in.GoModPath)
	}
	for _, u := range unpinned {
		g.record(v, KindUnpinnedDependency, u.String())
	}
	return nil
}
