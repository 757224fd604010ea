// Package retry implements the kind-aware retry policy used around AI and
// storage calls. Errors carry a Kind that selects the backoff curve and a
// Class that decides whether the operation is retried, the slide skipped,
// or the run failed.
package retry

import (
	"context"
	"errors"
	"fmt"
)

// Kind selects the backoff curve for a retryable error.
type Kind string

const (
	KindOverloaded Kind = "overloaded"
	KindRateLimit  Kind = "rate_limit"
	KindTimeout    Kind = "timeout"
	KindOther      Kind = "other"
)

// Class determines how the caller reacts once an attempt fails.
type Class int

const (
	// ClassRetryable errors are retried with backoff up to the attempt cap.
	ClassRetryable Class = iota
	// ClassSkippable errors abandon the unit of work (the slide) without
	// failing the run.
	ClassSkippable
	// ClassFatal errors abort the whole run immediately.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassSkippable:
		return "skippable"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

// Error is a classified failure. Producers (the AI client, the store) wrap
// causes in one of the constructors below; Classify recovers the policy on
// the consuming side through errors.As.
type Error struct {
	Kind  Kind
	Class Class
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable wraps err as retryable with the given kind.
func Retryable(kind Kind, err error) error {
	return &Error{Kind: kind, Class: ClassRetryable, Err: err}
}

// Skippable wraps err so the current unit of work is abandoned without
// failing the run.
func Skippable(err error) error {
	return &Error{Kind: KindOther, Class: ClassSkippable, Err: err}
}

// Fatal wraps err so the run aborts immediately.
func Fatal(err error) error {
	return &Error{Kind: KindOther, Class: ClassFatal, Err: err}
}

// Classify maps an arbitrary error to its retry policy. Unwrapped context
// cancellation is fatal (the run was cancelled, retrying is pointless);
// deadline expiry is a retryable timeout; everything unclassified retries
// on the conservative "other" curve.
func Classify(err error) (Kind, Class) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, ce.Class
	}
	if errors.Is(err, context.Canceled) {
		return KindOther, ClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, ClassRetryable
	}
	return KindOther, ClassRetryable
}
