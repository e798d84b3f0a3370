// Package errors provides structured error types for the ChartMorph
// application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP surface, and the
//     background update pipeline
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input or configuration validation failures
//   - FETCH_* / GENERATION_*: Producer-path failures (non-fatal; the
//     scheduler logs them and retries on the next tick)
//   - DIMENSION_* / ESTIMATION_*: Transition preconditions (non-fatal;
//     they force the cut fallback)
//   - NETWORK_* / TIMEOUT: Transport errors
//   - INTERNAL_*: Unexpected internal errors
//
// A stale generation result is deliberately NOT an error: installs with a
// superseded sequence number are silently dropped by the frame store.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeFetchFailed, "fetch %s: empty series", symbol)
//	if errors.Is(err, errors.ErrCodeFetchFailed) {
//	    // Handle fetch failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(origErr, errors.ErrCodeGenerationFailed, "generate seq %d", seq)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input and configuration validation errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidSymbol Code = "INVALID_SYMBOL"

	// Producer-path errors (non-fatal, retried next tick)
	ErrCodeFetchFailed      Code = "FETCH_FAILED"
	ErrCodeGenerationFailed Code = "GENERATION_FAILED"

	// Transition preconditions (non-fatal, force the cut fallback)
	ErrCodeDimensionMismatch Code = "DIMENSION_MISMATCH"
	ErrCodeEstimationFailed  Code = "ESTIMATION_FAILED"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsRecoverable reports whether the error belongs to the producer-path
// taxonomy that leaves the display untouched and retries later, as
// opposed to construction-time misconfiguration.
func IsRecoverable(err error) bool {
	switch GetCode(err) {
	case ErrCodeFetchFailed, ErrCodeGenerationFailed,
		ErrCodeDimensionMismatch, ErrCodeEstimationFailed,
		ErrCodeNetwork, ErrCodeTimeout:
		return true
	}
	return false
}
