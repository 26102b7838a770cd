package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusRejected}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), "%s should be terminal", status)
	}

	nonTerminal := []ExecutionStatus{ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusCompensating}
	for _, status := range nonTerminal {
		assert.False(t, status.IsTerminal(), "%s should not be terminal", status)
	}
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	key := IdempotencyKey("exec-1", "process_payment")

	assert.Equal(t, "exec-1:process_payment", key)
	assert.Equal(t, key, IdempotencyKey("exec-1", "process_payment"))
	assert.NotEqual(t, key, IdempotencyKey("exec-2", "process_payment"))
	assert.NotEqual(t, key, CompensationKey("exec-1", "process_payment"))
}

func TestRetryPolicy_Normalize(t *testing.T) {
	policy := RetryPolicy{}.Normalize()

	assert.Equal(t, DefaultMaxAttempts, policy.MaxAttempts)
	assert.Equal(t, DefaultAttemptTimeout, policy.AttemptTimeout)
	assert.Equal(t, DefaultBackoffBase, policy.BackoffBase)

	custom := RetryPolicy{MaxAttempts: 5, AttemptTimeout: time.Second, BackoffBase: time.Millisecond}.Normalize()

	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, time.Second, custom.AttemptTimeout)
	assert.Equal(t, time.Millisecond, custom.BackoffBase)
}

func TestDistributionBatch_Terminal(t *testing.T) {
	batch := &DistributionBatch{
		Results: []DistributionResult{
			{InvestmentID: "inv-1", Status: DistributionResultSuccess},
			{InvestmentID: "inv-2", Status: DistributionResultPending},
		},
	}

	assert.False(t, batch.Terminal())

	batch.Results[1].Status = DistributionResultFailed

	assert.True(t, batch.Terminal())
}

func TestDistributionBatch_FailedResults(t *testing.T) {
	batch := &DistributionBatch{
		Results: []DistributionResult{
			{InvestmentID: "inv-1", Status: DistributionResultSuccess},
			{InvestmentID: "inv-2", Status: DistributionResultFailed, FailureReason: "card declined"},
			{InvestmentID: "inv-3", Status: DistributionResultSuccess},
		},
	}

	failed := batch.FailedResults()

	assert.Len(t, failed, 1)
	assert.Equal(t, "inv-2", failed[0].InvestmentID)
	assert.Equal(t, "card declined", failed[0].FailureReason)
}
