package retry

import (
	"context"
	"errors"
	"strings"
)

// Kind classifies a failure for retry decisions.
type Kind int

const (
	// KindFatal failures are returned immediately.
	KindFatal Kind = iota
	// KindTransient failures are retried while budget remains.
	KindTransient
)

// String returns the string representation of the kind
func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "fatal"
}

// transientMarkers are matched against messages of errors that carry no
// explicit classification. Call layers should prefer Transient/Fatal.
var transientMarkers = []string{
	"500",
	"xhr error",
	"ProxyUnaryCall",
	"DEADLINE_EXCEEDED",
}

type classifiedError struct {
	kind Kind
	err  error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindTransient, err: err}
}

// Fatal marks err as not retryable, overriding any message markers.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindFatal, err: err}
}

// Classify decides whether err is worth retrying. Explicit classification
// wins, then well-known Go error shapes, then message markers.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}

	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.kind
	}

	if errors.Is(err, context.Canceled) {
		return KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return KindTransient
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return KindTransient
		}
	}
	return KindFatal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}
