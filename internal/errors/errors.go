package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors.
const (
	ErrUsage     = "USAGE"     // a flag value that can't be parsed; exits like a command line error
	ErrConfig    = "CONFIG"    // bad inventory, flags or files; aborts before any connection
	ErrSSH       = "SSH"       // could not reach a host or set up the transport
	ErrAuth      = "AUTH"      // every credential attempt was rejected
	ErrExec      = "EXEC"      // the remote command could not be run or exited non-zero
	ErrTimeout   = "TIMEOUT"   // the remote command exceeded its time budget
	ErrCancelled = "CANCELLED" // the run was interrupted
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSSH code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSSH,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Short returns a single-line form suitable for per-host reason strings:
// the message, followed by the innermost cause when there is one.
func (e *Error) Short() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Reason(e.Cause)
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var scErr *Error
	if errors.As(err, &scErr) {
		return scErr.Code == code
	}
	return false
}

// Reason flattens any error into one human-readable line.
// Structured errors use Short; other errors have their newlines collapsed.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var scErr *Error
	if errors.As(err, &scErr) {
		return scErr.Short()
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}

// ExitError carries a process exit status out of a command without
// printing anything. The run has already reported its own results.
type ExitError struct {
	Code int
}

// NewExitError returns an ExitError for code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the status carried by err: the ExitError code, 1 for
// any other error and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
