// Package errors defines the typed error taxonomy shared by the warehouse,
// the URL normalizer and the audit gate.
//
// Every error carries a Type and a Code. Two errors compare equal under
// errors.Is when both match, so callers test against the sentinels in this
// package rather than string messages. Audit errors additionally carry a
// fixed process exit code; severity is a property of the kind and is never
// adjusted by configuration.
package errors

// Severity represents how an issue affects the caller.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityAdvisory
	SeverityFatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityAdvisory:
		return "advisory"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText lets severities serialise by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
