package performance

import (
	"fmt"
	"sort"
)

// RegressionThresholds defines acceptable performance degradation limits.
type RegressionThresholds struct {
	// Latency ratio above which a slowdown is reported (1.15 = 15% slower)
	SlownessThreshold float64 `json:"slowness_threshold" yaml:"slowness_threshold" mapstructure:"slowness_threshold" validate:"gt=1"`
	// Throughput ratio below which a drop is reported (0.85 = 15% fewer docs/s)
	ThroughputThreshold float64 `json:"throughput_threshold" yaml:"throughput_threshold" mapstructure:"throughput_threshold" validate:"gt=0,lt=1"`
}

// DefaultThresholds returns reasonable default regression thresholds.
func DefaultThresholds() RegressionThresholds {
	return RegressionThresholds{
		SlownessThreshold:   1.15,
		ThroughputThreshold: 0.85,
	}
}

// RegressionDetection describes one metric that moved past its threshold.
type RegressionDetection struct {
	Metric           string  `json:"metric" yaml:"metric"`
	CurrentValue     float64 `json:"current_value" yaml:"current_value"`
	BaselineValue    float64 `json:"baseline_value" yaml:"baseline_value"`
	PercentageChange float64 `json:"percentage_change" yaml:"percentage_change"`
	Threshold        float64 `json:"threshold" yaml:"threshold"`
	Severity         string  `json:"severity" yaml:"severity"` // "minor", "major", "critical"
}

func (r RegressionDetection) String() string {
	return fmt.Sprintf("%s %s: %.2f -> %.2f (%+.1f%%)", r.Severity, r.Metric, r.BaselineValue, r.CurrentValue, r.PercentageChange)
}

// latencyMetrics grow when things get worse.
var latencyMetrics = map[string]bool{
	MetricP50MS: true,
	MetricP95MS: true,
	MetricMaxMS: true,
}

// DetectRegressions compares observed metrics with baseline metrics.
// Metrics missing from either side are skipped. Results are sorted by
// metric name.
func DetectRegressions(baseline, observed map[string]float64, th RegressionThresholds) []RegressionDetection {
	var out []RegressionDetection

	for name, current := range observed {
		base, ok := baseline[name]
		if !ok {
			continue
		}

		switch {
		case latencyMetrics[name]:
			if base <= 0 {
				continue
			}
			ratio := current / base
			if ratio > th.SlownessThreshold {
				out = append(out, detection(name, current, base, th.SlownessThreshold, calculateSeverity(ratio, th.SlownessThreshold)))
			}

		case name == MetricDocsPerSec:
			if base <= 0 {
				continue
			}
			ratio := current / base
			if ratio < th.ThroughputThreshold {
				// Invert so a bigger drop reads as a bigger ratio.
				out = append(out, detection(name, current, base, th.ThroughputThreshold, calculateSeverity(base/current, 1/th.ThroughputThreshold)))
			}

		case name == MetricErrors:
			if current > base {
				out = append(out, detection(name, current, base, 0, "critical"))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

func detection(name string, current, base, threshold float64, severity string) RegressionDetection {
	change := 0.0
	if base != 0 {
		change = (current/base - 1.0) * 100
	}
	return RegressionDetection{
		Metric:           name,
		CurrentValue:     current,
		BaselineValue:    base,
		PercentageChange: change,
		Threshold:        threshold,
		Severity:         severity,
	}
}

// calculateSeverity determines regression severity based on threshold ratio
func calculateSeverity(ratio, threshold float64) string {
	if ratio > threshold*2.0 {
		return "critical"
	} else if ratio > threshold*1.15 {
		return "major"
	}
	return "minor"
}
