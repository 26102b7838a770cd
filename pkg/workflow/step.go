// Package workflow contains the durable workflow engine and the two
// coordinators built on it: the investment-creation saga and the ROI
// distribution batch.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vestra-hq/vestra/pkg/models"
)

// StepFunc performs the work of a single step. It receives the current run
// state and the deterministic idempotency key for this step, and returns the
// result payload persisted in the invocation log.
type StepFunc func(ctx context.Context, run *Run, idempotencyKey string) (json.RawMessage, error)

// CheckFunc inspects a step's successful result and may veto the execution.
// Returning a RejectionError terminates the execution as rejected instead of
// failed.
type CheckFunc func(run *Run, result json.RawMessage) error

// Step is one compile-time step of a workflow definition. Steps are bound to
// concrete handler functions, there is no string dispatch at run time.
type Step struct {
	Name         string
	Irreversible bool
	Run          StepFunc
	Compensate   StepFunc // required when Irreversible
	Check        CheckFunc
	RetryPolicy  models.RetryPolicy // zero value means defaults
}

// Run carries the mutable state of one engine pass over an execution. Results
// holds the stored payload of every step that has succeeded so far, including
// steps replayed from the invocation log after a crash.
type Run struct {
	Execution *models.WorkflowExecution
	Results   map[string]json.RawMessage
}

// Result unmarshals the stored result of a completed step into v.
func (r *Run) Result(stepName string, v any) error {
	payload, ok := r.Results[stepName]
	if !ok {
		return fmt.Errorf("no result recorded for step %s", stepName)
	}

	err := json.Unmarshal(payload, v)
	if err != nil {
		return fmt.Errorf("failed to decode result of step %s: %w", stepName, err)
	}

	return nil
}

// RejectionError marks a business-rule denial. It terminates the execution
// with status rejected rather than failed and is not retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "execution rejected: " + e.Reason
}

// IsRejection reports whether err carries a RejectionError.
func IsRejection(err error) bool {
	var rejection *RejectionError

	return errors.As(err, &rejection)
}
