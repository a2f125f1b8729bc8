package core

import (
	"errors"
	"fmt"
)

// failure wraps a capability error with its retry classification. Stages use
// the classification to decide whether a retry can help.
type failure struct {
	cause     error
	transient bool
}

func (f *failure) Error() string {
	if f.transient {
		return fmt.Sprintf("transient: %v", f.cause)
	}

	return fmt.Sprintf("permanent: %v", f.cause)
}

func (f *failure) Unwrap() error {
	return f.cause
}

// Transient marks an error as retryable (timeouts, rate limits, 5xx).
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &failure{cause: err, transient: true}
}

// Permanent marks an error as not retryable (malformed input, auth failure,
// content-policy rejection).
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &failure{cause: err, transient: false}
}

// IsTransient reports whether err carries a transient classification.
// Unclassified errors are treated as permanent: retrying a call whose failure
// mode is unknown risks duplicate side effects on the external service.
func IsTransient(err error) bool {
	var f *failure
	if errors.As(err, &f) {
		return f.transient
	}

	return false
}
