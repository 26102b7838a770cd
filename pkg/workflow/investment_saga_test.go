package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestra-hq/vestra/pkg/activity"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/persistence/file"
)

const investmentAmount = int64(5_000_000) // ₦50,000 in kobo

type sagaHarness struct {
	persist    persistence.Persistence
	engine     *Engine
	compliance *fakeCompliance
	payments   *fakePayments
	notifier   *fakeNotifier
	allocator  *fakeAllocator
	publisher  *fakePublisher
}

func newSagaHarness(t *testing.T) *sagaHarness {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	compliance := &fakeCompliance{approved: true}
	payments := &fakePayments{}
	notifier := &fakeNotifier{}
	allocator := &fakeAllocator{}
	publisher := &fakePublisher{}

	executor := activity.NewExecutor(persist.Invocations(), nil, discardLogger())
	saga := NewInvestmentSaga(persist, compliance, payments, notifier, allocator, discardLogger())
	engine := NewEngine(persist, executor, publisher, discardLogger(), saga)

	return &sagaHarness{
		persist:    persist,
		engine:     engine,
		compliance: compliance,
		payments:   payments,
		notifier:   notifier,
		allocator:  allocator,
		publisher:  publisher,
	}
}

func (h *sagaHarness) submit(t *testing.T, amount int64) *models.WorkflowExecution {
	t.Helper()

	input, err := json.Marshal(models.InvestmentInput{
		InvestorID:    "user-1",
		PropertyID:    "prop-1",
		Amount:        amount,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	execution := &models.WorkflowExecution{
		WorkflowType: models.WorkflowTypeInvestmentCreation,
		Input:        input,
		Status:       models.ExecutionStatusPending,
	}
	require.NoError(t, h.persist.Executions().Create(context.Background(), execution))

	return execution
}

func (h *sagaHarness) reload(t *testing.T, id string) *models.WorkflowExecution {
	t.Helper()

	execution, err := h.persist.Executions().GetByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

func TestInvestmentSagaHappyPath(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, 7, final.CurrentStepIndex)
	require.NotNil(t, final.CompletedAt)

	assert.Equal(t, 1, h.payments.chargeCalls)
	assert.Equal(t, models.IdempotencyKey(execution.ID, StepProcessPayment), h.payments.chargeKeys[0])
	assert.Zero(t, h.payments.refundCalls)

	investment, err := h.persist.Investments().GetByID(ctx, deterministicID(execution.ID, "investment"))
	require.NoError(t, err)
	assert.Equal(t, models.InvestmentStatusActive, investment.Status)
	assert.Equal(t, investmentAmount, investment.Amount)
	assert.Equal(t, "pay-"+h.payments.chargeKeys[0], investment.PaymentReference)

	transaction, err := h.persist.Transactions().GetByID(ctx, deterministicID(execution.ID, "transaction"))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeInvestment, transaction.Type)
	assert.Equal(t, investment.ID, transaction.ReferenceID)

	balance, err := h.persist.Ledger().Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, -investmentAmount, balance)

	assert.Equal(t, 1, h.allocator.calls)
	assert.Contains(t, h.notifier.sent(), "investment.completed")

	published := h.publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.ExecutionCompletedEvent, published[0].GetType())
}

func TestInvestmentSagaRerunOfTerminalExecutionIsNoOp(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))
	require.NoError(t, h.engine.Run(ctx, execution.ID))

	assert.Equal(t, 1, h.payments.chargeCalls)

	balance, err := h.persist.Ledger().Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, -investmentAmount, balance)
}

func TestInvestmentSagaComplianceRejection(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	h.compliance.approved = false
	h.compliance.reason = "kyc incomplete"
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusRejected, final.Status)
	assert.Contains(t, final.ErrorReason, "kyc incomplete")

	assert.Zero(t, h.payments.chargeCalls)
	assert.Zero(t, h.payments.refundCalls)
	assert.Contains(t, h.notifier.sent(), "investment.failed")
}

func TestInvestmentSagaPaymentDeclined(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	h.payments.declineMessage = "insufficient funds"
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.ErrorReason, "payment declined")

	// Nothing was charged, so nothing is refunded.
	assert.Equal(t, 1, h.payments.chargeCalls)
	assert.Zero(t, h.payments.refundCalls)

	_, err := h.persist.Investments().GetByID(ctx, deterministicID(execution.ID, "investment"))
	assert.ErrorIs(t, err, persistence.ErrInvestmentNotFound)
}

func TestInvestmentSagaRefundsChargeWhenLaterStepFails(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	h.allocator.err = errors.New("share allocator unavailable")
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)
	assert.Contains(t, final.ErrorReason, "share allocator unavailable")

	require.Equal(t, 1, h.payments.refundCalls)
	assert.Equal(t, "pay-"+h.payments.chargeKeys[0], h.payments.refundedIDs[0])

	// The refund has its own succeeded invocation row.
	compensation, err := h.persist.Invocations().GetSucceeded(ctx, execution.ID, StepProcessPayment+":comp")
	require.NoError(t, err)
	require.NotNil(t, compensation)
	assert.Equal(t, models.CompensationKey(execution.ID, StepProcessPayment), compensation.IdempotencyKey)

	open, err := h.persist.Escalations().ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.Contains(t, h.notifier.sent(), "investment.failed")
}

func TestInvestmentSagaResumesAfterCrash(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)

	input, err := json.Marshal(models.InvestmentInput{
		InvestorID:    "user-1",
		PropertyID:    "prop-1",
		Amount:        investmentAmount,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	// State left behind by a worker killed after the third step completed.
	execution := &models.WorkflowExecution{
		WorkflowType:     models.WorkflowTypeInvestmentCreation,
		Input:            input,
		Status:           models.ExecutionStatusRunning,
		CurrentStepIndex: 3,
	}
	require.NoError(t, h.persist.Executions().Create(ctx, execution))

	investmentID := deterministicID(execution.ID, "investment")
	require.NoError(t, h.persist.Investments().Create(ctx, &models.Investment{
		ID:               investmentID,
		InvestorID:       "user-1",
		PropertyID:       "prop-1",
		Amount:           investmentAmount,
		PaymentReference: "pay-precrash",
		Status:           models.InvestmentStatusActive,
	}))

	recorded := []struct {
		step   string
		result string
	}{
		{StepVerifyCompliance, `{"approved":true}`},
		{StepProcessPayment, `{"success":true,"payment_id":"pay-precrash"}`},
		{StepCreateInvestment, `{"investment_id":"` + investmentID + `"}`},
	}
	for _, row := range recorded {
		require.NoError(t, h.persist.Invocations().Append(ctx, &models.ActivityInvocation{
			ExecutionID:    execution.ID,
			StepName:       row.step,
			AttemptNumber:  1,
			Status:         models.InvocationStatusSucceeded,
			IdempotencyKey: models.IdempotencyKey(execution.ID, row.step),
			Result:         json.RawMessage(row.result),
		}))
	}

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusCompleted, final.Status)
	assert.Equal(t, 7, final.CurrentStepIndex)

	// Steps 1-3 are not re-invoked.
	assert.Zero(t, h.compliance.calls)
	assert.Zero(t, h.payments.chargeCalls)

	transaction, err := h.persist.Transactions().GetByID(ctx, deterministicID(execution.ID, "transaction"))
	require.NoError(t, err)
	assert.Equal(t, investmentID, transaction.ReferenceID)

	balance, err := h.persist.Ledger().Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, -investmentAmount, balance)

	assert.Equal(t, 1, h.allocator.calls)
}

func TestInvestmentSagaEscalatesExhaustedCompensation(t *testing.T) {
	ctx := context.Background()
	h := newSagaHarness(t)
	h.allocator.err = errors.New("share allocator unavailable")
	h.payments.refundErr = errors.New("payment gateway down")
	execution := h.submit(t, investmentAmount)

	require.NoError(t, h.engine.Run(ctx, execution.ID))

	final := h.reload(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusFailed, final.Status)

	open, err := h.persist.Escalations().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, execution.ID, open[0].ExecutionID)
	assert.Equal(t, StepProcessPayment, open[0].StepName)
	assert.Contains(t, open[0].Reason, "payment gateway down")

	eventTypes := make([]events.EventType, 0)
	for _, event := range h.publisher.published() {
		eventTypes = append(eventTypes, event.GetType())
	}

	assert.Contains(t, eventTypes, events.CompensationEscalatedEvent)
	assert.Contains(t, eventTypes, events.ExecutionFailedEvent)
}
