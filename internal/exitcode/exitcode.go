package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/hopper/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or configuration
	UsageError = 2

	// ScanFailed indicates the repository could not be scanned or planned
	ScanFailed = 3

	// StepFailed indicates an upgrade step failed or was rejected
	StepFailed = 4

	// AuthError indicates an authentication or rate-limit failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Busy indicates another operation was already running
	Busy = 7

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Error kinds are checked first; untyped errors fall back to message matching.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return Interrupted
	case stderrors.Is(err, errors.ErrUnauthorized), stderrors.Is(err, errors.ErrRateLimited):
		return AuthError
	case stderrors.Is(err, errors.ErrBusy):
		return Busy
	case stderrors.Is(err, errors.ErrConfig):
		return UsageError
	case stderrors.Is(err, errors.ErrStepExecution), stderrors.Is(err, errors.ErrInvalidTransition):
		return StepFailed
	case stderrors.Is(err, errors.ErrScan), stderrors.Is(err, errors.ErrPlan), stderrors.Is(err, errors.ErrNotFound):
		return ScanFailed
	case stderrors.Is(err, context.DeadlineExceeded):
		return NetworkError
	}

	errMsg := strings.ToLower(err.Error())

	// Authentication errors
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case ScanFailed:
		return "Scan or planning failed"
	case StepFailed:
		return "Upgrade step failed"
	case AuthError:
		return "Authentication or rate-limit error"
	case NetworkError:
		return "Network error"
	case Busy:
		return "Another operation is in progress"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
