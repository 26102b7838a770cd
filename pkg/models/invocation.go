package models

import (
	"encoding/json"
	"time"
)

// InvocationStatus is the outcome of a single activity attempt.
type InvocationStatus string

const (
	InvocationStatusSucceeded InvocationStatus = "succeeded"
	InvocationStatusFailed    InvocationStatus = "failed"
	InvocationStatusTimedOut  InvocationStatus = "timed_out"
)

// ActivityInvocation records a single attempt to run a named activity within a
// workflow step. One row is appended per attempt; for a given
// (ExecutionID, StepName) at most one row may be succeeded, which is how the
// engine detects already-applied side effects on resume.
type ActivityInvocation struct {
	ID             string           `json:"id"`
	ExecutionID    string           `json:"execution_id"`
	StepName       string           `json:"step_name"`
	AttemptNumber  int              `json:"attempt_number"`
	Status         InvocationStatus `json:"status"`
	IdempotencyKey string           `json:"idempotency_key"`
	Result         json.RawMessage  `json:"result,omitempty"`
	ErrorReason    string           `json:"error_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// IdempotencyKey derives the deterministic key for a side-effecting activity
// call. Repeated delivery of the same logical operation (worker crash and
// restart, retry loops) carries the same key, so the collaborator or the
// dedup layer recognizes it as already applied.
func IdempotencyKey(executionID, stepName string) string {
	return executionID + ":" + stepName
}

// CompensationKey separates a step's compensation from its forward run so the
// two dedup independently.
func CompensationKey(executionID, stepName string) string {
	return executionID + ":" + stepName + ":comp"
}
