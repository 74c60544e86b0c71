package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeAudit      ErrorType = "audit"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is a structured error type with context.
type Error struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	// ExitCode is the process exit status callers should use when this
	// error terminates a command. Zero means "use the generic failure code".
	ExitCode int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two errors match when they share
// type and code, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component

	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause

	return e
}

// Error creation functions

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *Error {
	return &Error{Type: ErrorTypeSecurity, Code: code, Message: message}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(code, message string) *Error {
	return &Error{Type: ErrorTypeTimeout, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *Error {
	return &Error{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// NewAuditError creates a fatal audit error carrying its exit code.
func NewAuditError(code, message string, exitCode int) *Error {
	return &Error{Type: ErrorTypeAudit, Code: code, Message: message, ExitCode: exitCode}
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeSecurity
	}

	return false
}

// Common error codes.
const (
	ErrCodeParseFailed      = "ERR_PARSE_FAILED"
	ErrCodeControlChar      = "ERR_CONTROL_CHAR"
	ErrCodeProtocolRelative = "ERR_PROTOCOL_RELATIVE"
	ErrCodeReentrancy       = "ERR_REENTRANCY"
	ErrCodeCollectorTimeout = "ERR_COLLECTOR_TIMEOUT"
	ErrCodeCapExceeded      = "ERR_CAP_EXCEEDED"
	ErrCodeMalformedStream  = "ERR_MALFORMED_STREAM"
	ErrCodeNotImplemented   = "ERR_NOT_IMPLEMENTED"
	ErrCodeFinalized        = "ERR_FINALIZED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeURLRefused       = "ERR_URL_REFUSED"

	ErrCodeBaselineMissing         = "ERR_BASELINE_MISSING"
	ErrCodeBaselineUnsigned        = "ERR_BASELINE_UNSIGNED"
	ErrCodeUnregisteredRenderer    = "ERR_UNREGISTERED_RENDERER"
	ErrCodeBranchProtectionMissing = "ERR_BRANCH_PROTECTION_MISSING"
)

// Exit codes for fatal audit conditions. Severity is fixed per kind.
const (
	ExitOK                      = 0
	ExitInternal                = 1
	ExitBaselineMissing         = 10
	ExitBaselineUnsigned        = 11
	ExitUnregisteredRenderer    = 12
	ExitBranchProtectionMissing = 13
)

// Sentinels for errors.Is comparisons. Never mutate these; use the
// constructors to build instances with context.
var (
	ErrParseFailed      = NewValidationError(ErrCodeParseFailed, "input could not be parsed")
	ErrControlChar      = NewSecurityError(ErrCodeControlChar, "control character in input")
	ErrProtocolRelative = NewSecurityError(ErrCodeProtocolRelative, "protocol-relative URL rejected")
	ErrReentrancy       = NewInternalError(ErrCodeReentrancy, "dispatch already in progress", nil)
	ErrCollectorTimeout = NewTimeoutError(ErrCodeCollectorTimeout, "collector exceeded its time budget")
	ErrMalformedStream  = NewValidationError(ErrCodeMalformedStream, "malformed token stream")
	ErrNotImplemented   = NewConfigError(ErrCodeNotImplemented, "not implemented")
	ErrFinalized        = NewInternalError(ErrCodeFinalized, "warehouse already finalized", nil)
	ErrConfigInvalid    = NewConfigError(ErrCodeConfigInvalid, "invalid configuration")
	ErrURLRefused       = NewSecurityError(ErrCodeURLRefused, "URL refused by policy")

	ErrBaselineMissing         = NewAuditError(ErrCodeBaselineMissing, "performance baseline missing", ExitBaselineMissing)
	ErrBaselineUnsigned        = NewAuditError(ErrCodeBaselineUnsigned, "performance baseline unsigned or unverified", ExitBaselineUnsigned)
	ErrUnregisteredRenderer    = NewAuditError(ErrCodeUnregisteredRenderer, "unregistered HTML renderer discovered", ExitUnregisteredRenderer)
	ErrBranchProtectionMissing = NewAuditError(ErrCodeBranchProtectionMissing, "required status checks not enforced", ExitBranchProtectionMissing)
)

// Helper functions for common errors

// ParseFailed builds a parse failure for input.
func ParseFailed(input string, cause error) *Error {
	return NewValidationError(ErrCodeParseFailed, "cannot parse "+quote(input)).WithCause(cause)
}

// ControlChar builds a control-character rejection.
func ControlChar(input string, pos int) *Error {
	return NewSecurityError(ErrCodeControlChar, fmt.Sprintf("control character at offset %d in %s", pos, quote(input)))
}

// ProtocolRelative builds a protocol-relative rejection.
func ProtocolRelative(input string) *Error {
	return NewSecurityError(ErrCodeProtocolRelative, "protocol-relative URL "+quote(input)+" must be resolved by the caller")
}

// MalformedStream builds a malformed-stream error for the token at index.
func MalformedStream(index int, reason string) *Error {
	return NewValidationError(ErrCodeMalformedStream, reason).WithContext("token_index", index)
}

// NotImplemented builds a not-implemented configuration error.
func NotImplemented(feature string) *Error {
	return NewConfigError(ErrCodeNotImplemented, feature+" is not implemented")
}

// ConfigInvalid builds a configuration validation error.
func ConfigInvalid(message string, cause error) *Error {
	return NewConfigError(ErrCodeConfigInvalid, message).WithCause(cause)
}

// URLRefused builds a refusal for a URL the fetcher will not request.
func URLRefused(input, reason string) *Error {
	return NewSecurityError(ErrCodeURLRefused, "refusing "+quote(input)+": "+reason)
}

func quote(s string) string {
	const max = 80
	if len(s) > max {
		s = s[:max] + "..."
	}
	return fmt.Sprintf("%q", s)
}
