package warehouse

import (
	"encoding/json"
	"time"
)

// Collector error kinds.
const (
	KindCollectorTimeout = "collector_timeout"
	KindCollectorPanic   = "collector_panic"
	KindCollectorError   = "collector_error"
	KindInvalidLine      = "invalid_line"
)

// Warning kinds.
const (
	WarnNestingDepth  = "nesting_depth_exceeded"
	WarnCollectorSlow = "collector_slow"
	WarnQuarantined   = "collector_quarantined"
	WarnReadmitted    = "collector_readmitted"
)

// WarehouseComponent is the collector name used for errors raised by the
// warehouse itself.
const WarehouseComponent = "warehouse"

// reservedNames are top-level keys of the serialized record.
var reservedNames = map[string]bool{
	"warnings":         true,
	"collector_errors": true,
	"elapsed_ms":       true,
	"token_count":      true,
	WarehouseComponent: true,
}

// Warning is an advisory note that did not drop data.
type Warning struct {
	Kind       string `json:"kind" yaml:"kind"`
	Collector  string `json:"collector,omitempty" yaml:"collector,omitempty"`
	TokenIndex int    `json:"token_index" yaml:"token_index"`
	Message    string `json:"message" yaml:"message"`
}

// CollectorError records one isolated failure. TokenIndex is -1 for
// failures during finalize.
type CollectorError struct {
	Collector  string `json:"collector" yaml:"collector"`
	TokenIndex int    `json:"token_index" yaml:"token_index"`
	Kind       string `json:"kind" yaml:"kind"`
	Message    string `json:"message" yaml:"message"`
}

// Result is returned by FinalizeAll. The warehouse keeps no reference to it.
type Result struct {
	PerCollector    map[string]Output
	Warnings        []Warning
	CollectorErrors []CollectorError
	Elapsed         time.Duration
	TokenCount      int
}

// Get returns the output of the named collector.
func (r *Result) Get(name string) (Output, bool) {
	out, ok := r.PerCollector[name]
	return out, ok
}

// ErrorsFor returns the recorded errors of one collector.
func (r *Result) ErrorsFor(name string) []CollectorError {
	var out []CollectorError
	for _, e := range r.CollectorErrors {
		if e.Collector == name {
			out = append(out, e)
		}
	}
	return out
}

// Record flattens the result into the serialized layout: one key per
// collector plus warnings, collector_errors, elapsed_ms and token_count.
func (r *Result) Record() map[string]any {
	rec := make(map[string]any, len(r.PerCollector)+4)
	for name, out := range r.PerCollector {
		rec[name] = out
	}

	warnings := r.Warnings
	if warnings == nil {
		warnings = []Warning{}
	}
	errs := r.CollectorErrors
	if errs == nil {
		errs = []CollectorError{}
	}

	rec["warnings"] = warnings
	rec["collector_errors"] = errs
	rec["elapsed_ms"] = float64(r.Elapsed.Microseconds()) / 1000
	rec["token_count"] = r.TokenCount
	return rec
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Record())
}

// MarshalYAML implements yaml.Marshaler.
func (r *Result) MarshalYAML() (interface{}, error) {
	return r.Record(), nil
}
