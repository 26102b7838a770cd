// Package activity runs single named operations with per-attempt timeouts,
// retry of transient failures and an idempotency-keyed invocation log.
package activity

import (
	"errors"
	"fmt"
)

// ErrPermanentFailure marks a step failure that the workflow engine must not
// retry: either the activity reported a non-retryable error, or it exhausted
// its retry budget.
var ErrPermanentFailure = errors.New("activity failed permanently")

// TransientError wraps a failure that is worth retrying with the same
// idempotency key: network errors, timeouts, 5xx-equivalent collaborator
// responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so the executor retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &TransientError{Err: err}
}

// IsTransient checks whether an error was marked retryable.
func IsTransient(err error) bool {
	var transient *TransientError

	return errors.As(err, &transient)
}

// IsPermanentFailure checks whether an activity failed beyond retry.
func IsPermanentFailure(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
