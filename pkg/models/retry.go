package models

import "time"

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 60 * time.Second
	DefaultBackoffBase    = 500 * time.Millisecond
)

// RetryPolicy controls how the activity executor retries transient failures.
// Zero values fall back to the defaults.
type RetryPolicy struct {
	MaxAttempts    int           `json:"max_attempts"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
	BackoffBase    time.Duration `json:"backoff_base"`
}

// DefaultRetryPolicy returns the policy applied when a step does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		AttemptTimeout: DefaultAttemptTimeout,
		BackoffBase:    DefaultBackoffBase,
	}
}

// Normalize fills in defaults for unset fields.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultAttemptTimeout
	}

	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultBackoffBase
	}

	return p
}
