package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionTerminal indicates an attempt to update an execution that
	// already reached a terminal status.
	ErrExecutionTerminal = errors.New("execution is terminal")

	// ErrCursorRegression indicates an attempt to move the step cursor backwards.
	ErrCursorRegression = errors.New("step cursor may only advance")

	// ErrInvocationConflict indicates a second succeeded invocation for the
	// same (execution, step) pair.
	ErrInvocationConflict = errors.New("step already has a succeeded invocation")

	// ErrInvestmentNotFound indicates an investment was not found by the given identifier.
	ErrInvestmentNotFound = errors.New("investment not found")

	// ErrTransactionNotFound indicates a transaction was not found by the given identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBatchNotFound indicates a distribution batch was not found by the given identifier.
	ErrBatchNotFound = errors.New("distribution batch not found")

	// ErrResultNotFound indicates a distribution result was not found within its batch.
	ErrResultNotFound = errors.New("distribution result not found")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsExecutionTerminal checks if an error indicates a write to a terminal execution.
func IsExecutionTerminal(err error) bool {
	return errors.Is(err, ErrExecutionTerminal)
}

// IsBatchNotFound checks if an error indicates a distribution batch was not found.
func IsBatchNotFound(err error) bool {
	return errors.Is(err, ErrBatchNotFound)
}

// IsInvestmentNotFound checks if an error indicates an investment was not found.
func IsInvestmentNotFound(err error) bool {
	return errors.Is(err, ErrInvestmentNotFound)
}
