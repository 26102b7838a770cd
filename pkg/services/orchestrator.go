package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// SubmitDistributionRequest is the inbound payload of a distribution
// submission. A future DistributionDate schedules the batch instead of
// running it immediately.
type SubmitDistributionRequest struct {
	PropertyID       string    `json:"property_id"  validate:"required"`
	TotalAmount      int64     `json:"total_amount" validate:"required,gt=0"` // kobo
	DistributionDate time.Time `json:"distribution_date"`
}

// Orchestrator accepts workflow submissions. Submissions are asynchronous:
// the pending execution is persisted and enqueued, and the caller polls the
// returned handle for progress.
type Orchestrator struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewOrchestrator creates a new orchestrator service.
func NewOrchestrator(persist persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		persistence: persist,
		eventBus:    eventBus,
		validator:   validator.New(),
		logger:      logger.With("module", "orchestrator"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (o *Orchestrator) HealthCheck(ctx context.Context) (string, bool) {
	if o.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := o.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// SubmitInvestment persists a pending investment-creation execution and
// enqueues it. Returns the execution ID immediately; the caller never blocks
// on step execution.
func (o *Orchestrator) SubmitInvestment(ctx context.Context, input models.InvestmentInput) (string, error) {
	err := o.validator.Struct(input)
	if err != nil {
		return "", NewValidationError("SubmitInvestment", "INVALID_INPUT", err.Error(), ErrInvalidInput)
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode investment input: %w", err)
	}

	execution := &models.WorkflowExecution{
		WorkflowType: models.WorkflowTypeInvestmentCreation,
		Input:        payload,
		Status:       models.ExecutionStatusPending,
	}

	err = o.persistence.Executions().Create(ctx, execution)
	if err != nil {
		return "", fmt.Errorf("failed to persist execution: %w", err)
	}

	event := events.ExecutionRequested{
		BaseEvent:    events.NewBaseEvent(events.ExecutionRequestedEvent, execution.ID),
		WorkflowType: execution.WorkflowType,
	}

	err = o.eventBus.Publish(ctx, execution.ID, event)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue execution %s: %w", execution.ID, err)
	}

	o.logger.InfoContext(ctx, "Investment submitted",
		"execution_id", execution.ID, "investor_id", input.InvestorID, "amount", input.Amount)

	return execution.ID, nil
}

// SubmitDistribution persists a pending distribution batch and its driving
// execution. A batch due now is enqueued immediately; a future-dated batch
// stays pending until the scheduler picks it up. Returns the batch ID as the
// pollable handle.
func (o *Orchestrator) SubmitDistribution(ctx context.Context, req SubmitDistributionRequest) (string, error) {
	err := o.validator.Struct(req)
	if err != nil {
		return "", NewValidationError("SubmitDistribution", "INVALID_INPUT", err.Error(), ErrInvalidInput)
	}

	distributionDate := req.DistributionDate
	if distributionDate.IsZero() {
		distributionDate = time.Now().UTC()
	}

	batch := &models.DistributionBatch{
		PropertyID:       req.PropertyID,
		TotalAmount:      req.TotalAmount,
		DistributionDate: distributionDate,
		Status:           models.BatchStatusPending,
	}

	err = o.persistence.Distributions().CreateBatch(ctx, batch)
	if err != nil {
		return "", fmt.Errorf("failed to persist batch: %w", err)
	}

	payload, err := json.Marshal(models.DistributionInput{BatchID: batch.ID})
	if err != nil {
		return "", fmt.Errorf("failed to encode distribution input: %w", err)
	}

	execution := &models.WorkflowExecution{
		ID:           DistributionExecutionID(batch.ID),
		WorkflowType: models.WorkflowTypeROIDistribution,
		Input:        payload,
		Status:       models.ExecutionStatusPending,
	}

	err = o.persistence.Executions().Create(ctx, execution)
	if err != nil {
		return "", fmt.Errorf("failed to persist execution: %w", err)
	}

	if distributionDate.After(time.Now().UTC()) {
		o.logger.InfoContext(ctx, "Distribution scheduled",
			"batch_id", batch.ID, "distribution_date", distributionDate)

		return batch.ID, nil
	}

	event := events.DistributionRequested{
		BaseEvent: events.NewBaseEvent(events.DistributionRequestedEvent, execution.ID),
		BatchID:   batch.ID,
	}

	err = o.eventBus.Publish(ctx, execution.ID, event)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue distribution %s: %w", batch.ID, err)
	}

	o.logger.InfoContext(ctx, "Distribution submitted",
		"batch_id", batch.ID, "property_id", req.PropertyID, "total_amount", req.TotalAmount)

	return batch.ID, nil
}

// GetExecution returns the current state of an execution for polling.
func (o *Orchestrator) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := o.persistence.Executions().GetByID(ctx, id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
	}

	return execution, nil
}

// GetBatch returns a distribution batch with its per-investor results.
func (o *Orchestrator) GetBatch(ctx context.Context, id string) (*models.DistributionBatch, error) {
	batch, err := o.persistence.Distributions().GetBatch(ctx, id)
	if err != nil {
		if persistence.IsBatchNotFound(err) {
			return nil, ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}

	return batch, nil
}

// DistributionExecutionID derives the execution ID that drives a batch, so
// the scheduler can enqueue a due batch without a lookup table.
func DistributionExecutionID(batchID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(batchID+":execution")).String()
}
