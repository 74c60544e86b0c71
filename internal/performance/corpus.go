// Package performance measures extraction over a corpus of documents and
// compares the measurements with a recorded baseline.
//
// RunCorpus produces the metrics that `doxstrux baseline create` signs
// and that the audit gate checks for regressions.
package performance

import (
	"context"
	"os"
	"time"

	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/tokenizer"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Metric names recorded in baselines.
const (
	MetricP50MS       = "p50_ms"
	MetricP95MS       = "p95_ms"
	MetricMaxMS       = "max_ms"
	MetricDocsPerSec  = "docs_per_sec"
	MetricTokensTotal = "tokens_total"
	MetricErrors      = "errors"
)

// BuildFunc returns a fresh warehouse for one document.
type BuildFunc func() (*warehouse.Warehouse, error)

// DocResult is the measurement for one document.
type DocResult struct {
	Path            string        `json:"path" yaml:"path"`
	Elapsed         time.Duration `json:"elapsed" yaml:"elapsed"`
	Tokens          int           `json:"tokens" yaml:"tokens"`
	CollectorErrors int           `json:"collector_errors,omitempty" yaml:"collector_errors,omitempty"`
	Warnings        int           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error           string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Stats summarises a corpus run. Durations are in milliseconds.
type Stats struct {
	Docs            int     `json:"docs" yaml:"docs"`
	P50             float64 `json:"p50_ms" yaml:"p50_ms"`
	P95             float64 `json:"p95_ms" yaml:"p95_ms"`
	Max             float64 `json:"max_ms" yaml:"max_ms"`
	DocsPerSec      float64 `json:"docs_per_sec" yaml:"docs_per_sec"`
	TokensTotal     int     `json:"tokens_total" yaml:"tokens_total"`
	Errors          int     `json:"errors" yaml:"errors"`
	CollectorErrors int     `json:"collector_errors" yaml:"collector_errors"`
}

// Metrics returns the stats keyed by baseline metric name.
func (s Stats) Metrics() map[string]float64 {
	return map[string]float64{
		MetricP50MS:       s.P50,
		MetricP95MS:       s.P95,
		MetricMaxMS:       s.Max,
		MetricDocsPerSec:  s.DocsPerSec,
		MetricTokensTotal: float64(s.TokensTotal),
		MetricErrors:      float64(s.Errors),
	}
}

// Report is the outcome of RunCorpus.
type Report struct {
	Docs  []DocResult `json:"docs" yaml:"docs"`
	Stats Stats       `json:"stats" yaml:"stats"`
}

// RunCorpus tokenizes and dispatches each file through a warehouse from
// build. A document that fails is counted in Stats.Errors and the run
// continues; only context cancellation stops it early.
func RunCorpus(ctx context.Context, files []string, build BuildFunc, logger logging.Logger) (*Report, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("performance")

	op := logging.StartOperation(logger, "run_corpus")
	tz := tokenizer.New()

	report := &Report{Docs: make([]DocResult, 0, len(files))}
	elapsed := make([]time.Duration, 0, len(files))
	start := time.Now()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc := runDocument(ctx, tz, path, build)
		if doc.Error != "" {
			logger.Warn(ctx, nil, "Corpus document failed", "path", path, "error", doc.Error)
			report.Stats.Errors++
		} else {
			elapsed = append(elapsed, doc.Elapsed)
		}
		report.Stats.TokensTotal += doc.Tokens
		report.Stats.CollectorErrors += doc.CollectorErrors
		report.Docs = append(report.Docs, doc)
	}

	total := time.Since(start)
	report.Stats.Docs = len(files)
	summarise(&report.Stats, elapsed, total)

	op.End(ctx, "docs", report.Stats.Docs, "errors", report.Stats.Errors, "p95_ms", report.Stats.P95)
	return report, nil
}

func runDocument(ctx context.Context, tz *tokenizer.Tokenizer, path string, build BuildFunc) (doc DocResult) {
	doc.Path = path

	src, err := os.ReadFile(path)
	if err != nil {
		doc.Error = err.Error()
		return doc
	}

	start := time.Now()
	defer func() { doc.Elapsed = time.Since(start) }()

	tokens, err := tz.Tokenize(src)
	if err != nil {
		doc.Error = err.Error()
		return doc
	}
	doc.Tokens = len(tokens)

	w, err := build()
	if err != nil {
		doc.Error = err.Error()
		return doc
	}
	if err := w.DispatchAll(ctx, tokens); err != nil {
		doc.Error = err.Error()
		return doc
	}
	res, err := w.FinalizeAll(ctx)
	if err != nil {
		doc.Error = err.Error()
		return doc
	}

	doc.CollectorErrors = len(res.CollectorErrors)
	doc.Warnings = len(res.Warnings)
	return doc
}

func summarise(s *Stats, elapsed []time.Duration, total time.Duration) {
	if len(elapsed) == 0 {
		return
	}

	ms := durationsMS(elapsed)
	s.P50 = percentileSorted(ms, 50)
	s.P95 = percentileSorted(ms, 95)
	s.Max = ms[len(ms)-1]

	if total > 0 {
		s.DocsPerSec = float64(len(elapsed)) / total.Seconds()
	}
}
