package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence/file"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturingPublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func newOrchestrator(t *testing.T) (*Orchestrator, *file.Persistence, *capturingPublisher) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	publisher := &capturingPublisher{}
	orchestrator := NewOrchestrator(persist, publisher, slog.New(slog.DiscardHandler))

	return orchestrator, persist, publisher
}

func TestSubmitInvestment(t *testing.T) {
	ctx := context.Background()
	orchestrator, persist, publisher := newOrchestrator(t)

	executionID, err := orchestrator.SubmitInvestment(ctx, models.InvestmentInput{
		InvestorID:    "user-1",
		PropertyID:    "prop-1",
		Amount:        5_000_000,
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	require.NotEmpty(t, executionID)

	execution, err := persist.Executions().GetByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.Equal(t, models.WorkflowTypeInvestmentCreation, execution.WorkflowType)
	assert.Zero(t, execution.CurrentStepIndex)

	var input models.InvestmentInput

	require.NoError(t, json.Unmarshal(execution.Input, &input))
	assert.Equal(t, int64(5_000_000), input.Amount)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.ExecutionRequestedEvent, published[0].GetType())
}

func TestSubmitInvestmentValidation(t *testing.T) {
	ctx := context.Background()
	orchestrator, _, publisher := newOrchestrator(t)

	tests := []struct {
		name  string
		input models.InvestmentInput
	}{
		{
			name:  "missing investor",
			input: models.InvestmentInput{PropertyID: "prop-1", Amount: 100, PaymentMethod: "card"},
		},
		{
			name:  "zero amount",
			input: models.InvestmentInput{InvestorID: "user-1", PropertyID: "prop-1", PaymentMethod: "card"},
		},
		{
			name:  "negative amount",
			input: models.InvestmentInput{InvestorID: "user-1", PropertyID: "prop-1", Amount: -5, PaymentMethod: "card"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orchestrator.SubmitInvestment(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	assert.Empty(t, publisher.published())
}

func TestSubmitDistribution(t *testing.T) {
	ctx := context.Background()
	orchestrator, persist, publisher := newOrchestrator(t)

	batchID, err := orchestrator.SubmitDistribution(ctx, SubmitDistributionRequest{
		PropertyID:  "prop-1",
		TotalAmount: 100_000_000,
	})
	require.NoError(t, err)

	batch, err := persist.Distributions().GetBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusPending, batch.Status)
	assert.Empty(t, batch.Results)

	execution, err := persist.Executions().GetByID(ctx, DistributionExecutionID(batchID))
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowTypeROIDistribution, execution.WorkflowType)

	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.DistributionRequestedEvent, published[0].GetType())

	requested, ok := published[0].(events.DistributionRequested)
	require.True(t, ok)
	assert.Equal(t, batchID, requested.BatchID)
	assert.Equal(t, execution.ID, requested.ExecutionID)
}

func TestSubmitDistributionFutureDateIsNotEnqueued(t *testing.T) {
	ctx := context.Background()
	orchestrator, persist, publisher := newOrchestrator(t)

	batchID, err := orchestrator.SubmitDistribution(ctx, SubmitDistributionRequest{
		PropertyID:       "prop-1",
		TotalAmount:      100_000_000,
		DistributionDate: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	// The scheduler enqueues it when the date arrives.
	assert.Empty(t, publisher.published())

	execution, err := persist.Executions().GetByID(ctx, DistributionExecutionID(batchID))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
}

func TestGetExecutionNotFound(t *testing.T) {
	ctx := context.Background()
	orchestrator, _, _ := newOrchestrator(t)

	_, err := orchestrator.GetExecution(ctx, "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestGetBatchNotFound(t *testing.T) {
	ctx := context.Background()
	orchestrator, _, _ := newOrchestrator(t)

	_, err := orchestrator.GetBatch(ctx, "missing")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
