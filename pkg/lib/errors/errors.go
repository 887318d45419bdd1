// Package errors defines the error taxonomy shared by the packager supervisor,
// the control socket and the entry points.
//
// Fatal errors are typed so callers can branch with errors.As:
//   - ConnectionError: the control socket could not deliver a frame
//   - TimeoutError: a retry budget was exhausted
//   - PreparationError: the environment could not be prepared before spawning
//
// Conditions where the service is already in the requested state are sentinel
// warnings (ErrNotRunning, ErrNotOwned). They are logged, never returned.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

var (
	// ErrNotRunning is logged when a stop is requested and nothing answers the status probe.
	ErrNotRunning = errors.New("packager is not running")

	// ErrNotOwned is logged when the packager runs but was started by someone else.
	ErrNotOwned = errors.New("packager is still running. If the packager was started outside this workspace, please quit the packager process using the task manager")
)

// ConnectionError reports a control message that could not be delivered.
//
// The message text only names the control message so it can be shown to users as is;
// the socket failure is kept as the cause.
type ConnectionError struct {
	Message string
	Cause   error
}

// NewConnectionError creates a ConnectionError for the named control message.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{Message: message, Cause: cause}
}

func (e *ConnectionError) Error() string {
	return "An error occurred while handling message: " + e.Message
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// TimeoutError reports an exhausted retry budget. Error returns the failure message verbatim.
type TimeoutError struct {
	Message  string
	Attempts int
}

// NewTimeoutError creates a TimeoutError.
func NewTimeoutError(message string, attempts int) *TimeoutError {
	return &TimeoutError{Message: message, Attempts: attempts}
}

func (e *TimeoutError) Error() string { return e.Message }

// PreparationError reports that a dependency patch target could not be found or patched.
type PreparationError struct {
	Package    string
	Candidates []string
	Cause      error
}

// NewPreparationError creates a PreparationError for pkg.
func NewPreparationError(pkg string, candidates []string, cause error) *PreparationError {
	return &PreparationError{Package: pkg, Candidates: candidates, Cause: cause}
}

func (e *PreparationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to prepare package %q", e.Package)
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (looked in %s)", strings.Join(e.Candidates, ", "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *PreparationError) Unwrap() error { return e.Cause }

// IsFatal reports whether err belongs to the fatal part of the taxonomy.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var connErr *ConnectionError
	var timeoutErr *TimeoutError
	var prepErr *PreparationError
	return errors.As(err, &connErr) || errors.As(err, &timeoutErr) || errors.As(err, &prepErr)
}

// IsWarning reports whether err is one of the non-fatal "already in state" conditions.
func IsWarning(err error) bool {
	return errors.Is(err, ErrNotRunning) || errors.Is(err, ErrNotOwned)
}
