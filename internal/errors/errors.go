package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Scan errors (SCAN-001 to SCAN-099)
	ErrCodeScanEmpty           ErrorCode = "SCAN-001"
	ErrCodeScanManifestMissing ErrorCode = "SCAN-002"
	ErrCodeScanAnalysis        ErrorCode = "SCAN-003"
	ErrCodeScanPreview         ErrorCode = "SCAN-004"
	ErrCodeScanSource          ErrorCode = "SCAN-005"

	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanOracle   ErrorCode = "PLAN-001"
	ErrCodePlanInvalid  ErrorCode = "PLAN-002"
	ErrCodePlanNotReady ErrorCode = "PLAN-003"

	// Step errors (STEP-001 to STEP-099)
	ErrCodeStepTransform    ErrorCode = "STEP-001"
	ErrCodeStepPreview      ErrorCode = "STEP-002"
	ErrCodeStepPrecondition ErrorCode = "STEP-003"
	ErrCodeStepIndex        ErrorCode = "STEP-004"
	ErrCodeStepTransition   ErrorCode = "STEP-005"

	// Oracle errors (ORACLE-001 to ORACLE-099)
	ErrCodeOracleMalformed ErrorCode = "ORACLE-001"
	ErrCodeOracleAuth      ErrorCode = "ORACLE-002"
	ErrCodeOracleRateLimit ErrorCode = "ORACLE-003"
	ErrCodeOracleAPI       ErrorCode = "ORACLE-004"

	// Source provider errors (SOURCE-001 to SOURCE-099)
	ErrCodeSourceUnauthorized ErrorCode = "SOURCE-001"
	ErrCodeSourceRateLimited  ErrorCode = "SOURCE-002"
	ErrCodeSourceNotFound     ErrorCode = "SOURCE-003"
	ErrCodeSourceInvalidRef   ErrorCode = "SOURCE-004"
	ErrCodeSourceAPI          ErrorCode = "SOURCE-005"

	// Engine errors (ENGINE-001 to ENGINE-099)
	ErrCodeEngineBusy ErrorCode = "ENGINE-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigAPIKey  ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileWriteFailed ErrorCode = "IO-001"
	ErrCodeFileMarshal     ErrorCode = "IO-002"
)

// Kinds checkable with errors.Is regardless of the concrete code.
var (
	ErrScan              = stderrors.New("scan failed")
	ErrPlan              = stderrors.New("planning failed")
	ErrStepExecution     = stderrors.New("step execution failed")
	ErrInvalidTransition = stderrors.New("invalid step transition")
	ErrMalformedResponse = stderrors.New("malformed oracle response")
	ErrUnauthorized      = stderrors.New("unauthorized")
	ErrRateLimited       = stderrors.New("rate limited")
	ErrNotFound          = stderrors.New("not found")
	ErrBusy              = stderrors.New("engine busy")
	ErrConfig            = stderrors.New("invalid configuration")
)

// HopperError represents an enhanced error with code, suggestions, and documentation
type HopperError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *HopperError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap exposes both the error kind and the cause to errors.Is and errors.As
func (e *HopperError) Unwrap() []error {
	var errs []error
	if kind := kindOf(e.Code); kind != nil {
		errs = append(errs, kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func kindOf(code ErrorCode) error {
	switch code {
	case ErrCodeStepTransform, ErrCodeStepPreview:
		return ErrStepExecution
	case ErrCodeStepPrecondition, ErrCodeStepIndex, ErrCodeStepTransition:
		return ErrInvalidTransition
	case ErrCodeOracleMalformed:
		return ErrMalformedResponse
	case ErrCodeOracleAuth, ErrCodeSourceUnauthorized:
		return ErrUnauthorized
	case ErrCodeOracleRateLimit, ErrCodeSourceRateLimited:
		return ErrRateLimited
	case ErrCodeSourceNotFound:
		return ErrNotFound
	case ErrCodeEngineBusy:
		return ErrBusy
	}

	switch {
	case strings.HasPrefix(string(code), "SCAN-"):
		return ErrScan
	case strings.HasPrefix(string(code), "PLAN-"):
		return ErrPlan
	case strings.HasPrefix(string(code), "CONFIG-"):
		return ErrConfig
	}
	return nil
}

// New creates a new HopperError
func New(code ErrorCode, message string) *HopperError {
	return &HopperError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new HopperError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *HopperError {
	return &HopperError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *HopperError) WithSuggestion(suggestion string) *HopperError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *HopperError) WithSuggestions(suggestions ...string) *HopperError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *HopperError) WithDocs(url string) *HopperError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the outermost HopperError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var herr *HopperError
	if stderrors.As(err, &herr) {
		return herr.Code, true
	}
	return "", false
}

// Common error constructors for frequently used errors

// NewScanEmptyError reports a repository that yielded no usable files
func NewScanEmptyError(ref string) *HopperError {
	return New(ErrCodeScanEmpty, fmt.Sprintf("repository appears empty or unreachable: %s", ref)).
		WithSuggestion("Check the repository URL or local path").
		WithSuggestion("Set a source token with --github-token for private repositories")
}

// NewManifestMissingError reports that the manifest file was not fetched
func NewManifestMissingError(manifest string) *HopperError {
	return New(ErrCodeScanManifestMissing, fmt.Sprintf("%s not found", manifest)).
		WithSuggestion("Make sure the manifest sits at the repository root")
}

// NewMalformedResponseError reports an oracle response that failed its shape contract
func NewMalformedResponseError(oracle string, cause error) *HopperError {
	return Wrap(ErrCodeOracleMalformed, fmt.Sprintf("%s oracle returned a malformed response", oracle), cause).
		WithSuggestion("Retry the operation; oracle output is not deterministic")
}

// NewOracleAuthError creates an oracle authentication error
func NewOracleAuthError(provider string) *HopperError {
	return New(ErrCodeOracleAuth, fmt.Sprintf("authentication failed for oracle provider: %s", provider)).
		WithSuggestion("Set the HOPPER_API_KEY environment variable").
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewOracleRateLimitError creates an oracle rate limit error
func NewOracleRateLimitError(provider string) *HopperError {
	return New(ErrCodeOracleRateLimit, fmt.Sprintf("rate limit exceeded for oracle provider: %s", provider)).
		WithSuggestion("Wait before retrying the request").
		WithSuggestion("Lower oracle.requests_per_second in the configuration")
}

// NewSourceUnauthorizedError reports rejected source credentials
func NewSourceUnauthorizedError(ref string) *HopperError {
	return New(ErrCodeSourceUnauthorized, fmt.Sprintf("authentication failed (401) for %s", ref)).
		WithSuggestion("Check your GitHub token").
		WithSuggestion("Run with --github-token or answer the token prompt")
}

// NewSourceRateLimitedError reports an exhausted source API quota
func NewSourceRateLimitedError(ref string) *HopperError {
	return New(ErrCodeSourceRateLimited, fmt.Sprintf("rate limit exceeded (403) for %s", ref)).
		WithSuggestion("Set a GitHub token to raise the rate limit")
}

// NewSourceNotFoundError reports a missing repository or file
func NewSourceNotFoundError(ref string) *HopperError {
	return New(ErrCodeSourceNotFound, fmt.Sprintf("repository or file not found (404): %s", ref)).
		WithSuggestion("Check the URL or repository permissions")
}

// NewBusyError reports an operation attempted while another one is running
func NewBusyError(operation string) *HopperError {
	return New(ErrCodeEngineBusy, fmt.Sprintf("cannot %s: another operation is in progress", operation))
}

// Summary returns the first line of err's message, leaving out suggestions
// and documentation links.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
