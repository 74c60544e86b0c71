package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating an Error if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Type:      errType,
			Code:      code,
			Message:   message,
			Cause:     e,
			Context:   e.Context,
			Component: e.Component,
			ExitCode:  e.ExitCode,
		}
	}

	return &Error{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *Error {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, message string) *Error {
	return Wrap(err, ErrorTypeConfig, ErrCodeConfigInvalid, message)
}

// ExitCode returns the process exit code for err. Nil maps to ExitOK;
// errors without a dedicated code map to ExitInternal.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var e *Error
	for target := err; errors.As(target, &e); target = e.Cause {
		if e.ExitCode != 0 {
			return e.ExitCode
		}
		if e.Cause == nil {
			break
		}
	}

	return ExitInternal
}

// Code extracts the error code, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
