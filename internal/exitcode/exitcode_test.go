package exitcode

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/hopper/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"cancelled", fmt.Errorf("scan: %w", context.Canceled), Interrupted},
		{"deadline", context.DeadlineExceeded, NetworkError},
		{"source unauthorized", errors.NewSourceUnauthorizedError("o/r"), AuthError},
		{"source rate limited", errors.NewSourceRateLimitedError("o/r"), AuthError},
		{"oracle auth", errors.NewOracleAuthError("gemini"), AuthError},
		{"oracle rate limit", errors.NewOracleRateLimitError("gemini"), AuthError},
		{"busy", errors.NewBusyError("scan"), Busy},
		{"config", errors.New(errors.ErrCodeConfigInvalid, "bad"), UsageError},
		{"missing api key", errors.New(errors.ErrCodeConfigAPIKey, "no key"), UsageError},
		{"empty repository", errors.NewScanEmptyError("o/r"), ScanFailed},
		{"manifest missing", errors.NewManifestMissingError("package.json"), ScanFailed},
		{"plan oracle", errors.New(errors.ErrCodePlanOracle, "failed"), ScanFailed},
		{"repository not found", errors.NewSourceNotFoundError("o/r"), ScanFailed},
		{"step transform", errors.New(errors.ErrCodeStepTransform, "failed"), StepFailed},
		{"step precondition", errors.New(errors.ErrCodeStepPrecondition, "not ready"), StepFailed},
		{"untyped unauthorized", stderrors.New("HTTP 401 Unauthorized"), AuthError},
		{"connection refused", stderrors.New("dial tcp: connection refused"), NetworkError},
		{"request timeout", stderrors.New("request timeout"), NetworkError},
		{"unknown command", stderrors.New("unknown command \"foo\" for \"hopper\""), UsageError},
		{"wrong arity", stderrors.New("accepts at most 1 arg(s), received 2"), UsageError},
		{"generic error", stderrors.New("something went wrong"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := DetermineExitCode(tt.err); code != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, code, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{ScanFailed, "Scan or planning failed"},
		{StepFailed, "Upgrade step failed"},
		{AuthError, "Authentication or rate-limit error"},
		{Busy, "Another operation is in progress"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := GetExitCodeDescription(tt.code); got != tt.expected {
				t.Errorf("GetExitCodeDescription(%d) = %s, want %s", tt.code, got, tt.expected)
			}
		})
	}
}
