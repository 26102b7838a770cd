package file

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

func TestExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	execution := &models.WorkflowExecution{
		WorkflowType: models.WorkflowTypeInvestmentCreation,
		Input:        json.RawMessage(`{"investor_id":"user-1"}`),
	}
	require.NoError(t, persist.Executions().Create(ctx, execution))
	require.NotEmpty(t, execution.ID)

	loaded, err := persist.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, loaded.Status)

	loaded.Status = models.ExecutionStatusRunning
	loaded.CurrentStepIndex = 2
	require.NoError(t, persist.Executions().Update(ctx, loaded))

	loaded.CurrentStepIndex = 1
	err = persist.Executions().Update(ctx, loaded)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrCursorRegression)

	loaded.Status = models.ExecutionStatusCompleted
	loaded.CurrentStepIndex = 7
	require.NoError(t, persist.Executions().Update(ctx, loaded))

	loaded.Status = models.ExecutionStatusRunning
	err = persist.Executions().Update(ctx, loaded)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionTerminal(err))
}

func TestExecutionNotFound(t *testing.T) {
	persist := NewPersistence(t.TempDir())

	_, err := persist.Executions().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestInvocationSingleSuccess(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	require.NoError(t, persist.Invocations().Append(ctx, &models.ActivityInvocation{
		ExecutionID:   "exec-1",
		StepName:      "process_payment",
		AttemptNumber: 1,
		Status:        models.InvocationStatusFailed,
		ErrorReason:   "gateway timeout",
	}))

	require.NoError(t, persist.Invocations().Append(ctx, &models.ActivityInvocation{
		ExecutionID:   "exec-1",
		StepName:      "process_payment",
		AttemptNumber: 2,
		Status:        models.InvocationStatusSucceeded,
		Result:        json.RawMessage(`{"success":true}`),
	}))

	err := persist.Invocations().Append(ctx, &models.ActivityInvocation{
		ExecutionID:   "exec-1",
		StepName:      "process_payment",
		AttemptNumber: 3,
		Status:        models.InvocationStatusSucceeded,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrInvocationConflict)

	winner, err := persist.Invocations().GetSucceeded(ctx, "exec-1", "process_payment")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 2, winner.AttemptNumber)

	all, err := persist.Invocations().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLedgerBalance(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	credit, err := persist.Ledger().Append(ctx, "user-1", 10_000_000, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), credit.BalanceAfter)

	debit, err := persist.Ledger().Append(ctx, "user-1", -4_000_000, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, int64(6_000_000), debit.BalanceAfter)

	balance, err := persist.Ledger().Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6_000_000), balance)

	empty, err := persist.Ledger().Balance(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty)
}

func TestTransactionsByUser(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	transaction := &models.Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		Type:        models.TransactionTypeInvestment,
		Amount:      5_000_000,
		ReferenceID: "inv-1",
	}
	require.NoError(t, persist.Transactions().Create(ctx, transaction))
	require.NoError(t, persist.Transactions().Create(ctx, transaction))

	byUser, err := persist.Transactions().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	_, err = persist.Transactions().GetByID(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrTransactionNotFound)
}

func TestDistributionResults(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	batch := &models.DistributionBatch{
		PropertyID:       "prop-1",
		TotalAmount:      100_000_000,
		DistributionDate: time.Now().UTC(),
	}
	require.NoError(t, persist.Distributions().CreateBatch(ctx, batch))

	results := []models.DistributionResult{
		{InvestmentID: "inv-a", UserID: "user-a", Amount: 60_000_000, Status: models.DistributionResultPending},
		{InvestmentID: "inv-b", UserID: "user-b", Amount: 40_000_000, Status: models.DistributionResultPending},
	}
	require.NoError(t, persist.Distributions().AddResults(ctx, batch.ID, results))

	// A second insert for the same investment is ignored.
	require.NoError(t, persist.Distributions().AddResults(ctx, batch.ID, []models.DistributionResult{
		{InvestmentID: "inv-a", UserID: "user-a", Amount: 1, Status: models.DistributionResultPending},
	}))

	require.NoError(t, persist.Distributions().UpdateResult(ctx, batch.ID, "inv-b", models.DistributionResultFailed, "declined"))

	loaded, err := persist.Distributions().GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Results, 2)
	assert.Equal(t, int64(60_000_000), loaded.Results[0].Amount)
	assert.Equal(t, models.DistributionResultFailed, loaded.Results[1].Status)
}

func TestListDueBatches(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	now := time.Now().UTC()

	due := &models.DistributionBatch{
		PropertyID:       "prop-1",
		TotalAmount:      10_000_000,
		DistributionDate: now.Add(-time.Hour),
	}
	require.NoError(t, persist.Distributions().CreateBatch(ctx, due))

	future := &models.DistributionBatch{
		PropertyID:       "prop-1",
		TotalAmount:      10_000_000,
		DistributionDate: now.Add(time.Hour),
	}
	require.NoError(t, persist.Distributions().CreateBatch(ctx, future))

	batches, err := persist.Distributions().ListDueBatches(ctx, now)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, due.ID, batches[0].ID)
}

func TestInvestmentsActiveByProperty(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	require.NoError(t, persist.Investments().Create(ctx, &models.Investment{
		ID:         "inv-1",
		InvestorID: "user-1",
		PropertyID: "prop-1",
		Amount:     5_000_000,
		Status:     models.InvestmentStatusActive,
	}))
	require.NoError(t, persist.Investments().Create(ctx, &models.Investment{
		ID:         "inv-2",
		InvestorID: "user-2",
		PropertyID: "prop-1",
		Amount:     3_000_000,
		Status:     models.InvestmentStatusFailed,
	}))

	active, err := persist.Investments().ListActiveByProperty(ctx, "prop-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "inv-1", active[0].ID)
}

func TestEscalations(t *testing.T) {
	ctx := context.Background()
	persist := NewPersistence(t.TempDir())

	require.NoError(t, persist.Escalations().Create(ctx, &models.CompensationEscalation{
		ExecutionID: "exec-1",
		StepName:    "process_payment",
		Reason:      "refund failed: gateway down",
	}))

	open, err := persist.Escalations().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "exec-1", open[0].ExecutionID)
}
