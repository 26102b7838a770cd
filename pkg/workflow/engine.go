package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vestra-hq/vestra/pkg/activity"
	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// Definition binds a workflow type to its ordered step list.
type Definition interface {
	Type() models.WorkflowType
	Steps() []Step

	// OnFailure runs after an execution reaches failed or rejected, once any
	// compensation has finished. Best-effort, errors are not propagated.
	OnFailure(ctx context.Context, run *Run, cause error)
}

// Engine drives workflow executions step by step. Progress is persisted
// after every step, so an execution interrupted by a crash resumes at the
// first step without a recorded success instead of re-running completed ones.
type Engine struct {
	persistence persistence.Persistence
	executor    *activity.Executor
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	definitions map[models.WorkflowType]Definition
}

// NewEngine creates a workflow engine serving the given definitions.
func NewEngine(
	persist persistence.Persistence,
	executor *activity.Executor,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	definitions ...Definition,
) *Engine {
	byType := make(map[models.WorkflowType]Definition, len(definitions))
	for _, definition := range definitions {
		byType[definition.Type()] = definition
	}

	return &Engine{
		persistence: persist,
		executor:    executor,
		eventBus:    eventBus,
		logger:      logger.With("module", "workflow_engine"),
		definitions: byType,
	}
}

// Run executes the workflow until it reaches a terminal status. Calling Run
// on an already terminal execution is a no-op, which makes task re-delivery
// harmless.
func (e *Engine) Run(ctx context.Context, executionID string) error {
	execution, err := e.persistence.Executions().GetByID(ctx, executionID)
	if err != nil {
		return fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	logger := e.logger.With("execution_id", execution.ID, "workflow_type", execution.WorkflowType)

	if execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Execution already terminal, nothing to do", "status", execution.Status)

		return nil
	}

	definition, ok := e.definitions[execution.WorkflowType]
	if !ok {
		return fmt.Errorf("no definition registered for workflow type %s", execution.WorkflowType)
	}

	steps := definition.Steps()

	run := &Run{
		Execution: execution,
		Results:   make(map[string]json.RawMessage, len(steps)),
	}

	err = e.replayResults(ctx, run, steps)
	if err != nil {
		return err
	}

	if execution.Status == models.ExecutionStatusCompensating {
		logger.InfoContext(ctx, "Resuming interrupted compensation")

		return e.fail(ctx, run, definition, steps, execution.CurrentStepIndex, errors.New(execution.ErrorReason))
	}

	if execution.Status == models.ExecutionStatusPending {
		execution.Status = models.ExecutionStatusRunning

		err = e.persistence.Executions().Update(ctx, execution)
		if err != nil {
			return fmt.Errorf("failed to mark execution running: %w", err)
		}
	}

	logger.InfoContext(ctx, "Running execution", "from_step", execution.CurrentStepIndex, "steps", len(steps))

	for i := execution.CurrentStepIndex; i < len(steps); i++ {
		step := steps[i]

		result, err := e.executor.Invoke(ctx, activity.InvocationRequest{
			ExecutionID: execution.ID,
			StepName:    step.Name,
			RetryPolicy: step.RetryPolicy,
			Activity: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
				return step.Run(ctx, run, idempotencyKey)
			},
		})
		if err != nil {
			logger.ErrorContext(ctx, "Step failed permanently", "step", step.Name, "error", err)

			return e.fail(ctx, run, definition, steps, i, err)
		}

		run.Results[step.Name] = result

		if step.Check != nil {
			err = step.Check(run, result)
			if err != nil {
				logger.InfoContext(ctx, "Step result vetoed execution", "step", step.Name, "error", err)

				return e.fail(ctx, run, definition, steps, i+1, err)
			}
		}

		execution.CurrentStepIndex = i + 1

		err = e.persistence.Executions().Update(ctx, execution)
		if err != nil {
			return fmt.Errorf("failed to persist cursor after step %s: %w", step.Name, err)
		}
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now

	err = e.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to mark execution completed: %w", err)
	}

	logger.InfoContext(ctx, "Execution completed")

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionCompletedEvent, execution.ID),
		Status:     execution.Status,
		DurationMs: now.Sub(execution.CreatedAt).Milliseconds(),
	})

	return nil
}

// replayResults loads the stored results of the steps before the cursor so
// later steps and compensations see the same values as the original pass.
func (e *Engine) replayResults(ctx context.Context, run *Run, steps []Step) error {
	for i := 0; i < run.Execution.CurrentStepIndex && i < len(steps); i++ {
		invocation, err := e.persistence.Invocations().GetSucceeded(ctx, run.Execution.ID, steps[i].Name)
		if err != nil {
			return fmt.Errorf("failed to replay step %s: %w", steps[i].Name, err)
		}

		if invocation != nil {
			run.Results[steps[i].Name] = invocation.Result
		}
	}

	return nil
}

// fail drives the execution to its terminal failure status. completed is the
// number of steps that succeeded before the failure; any of them that carry a
// compensation are compensated in reverse order first.
func (e *Engine) fail(ctx context.Context, run *Run, definition Definition, steps []Step, completed int, cause error) error {
	execution := run.Execution
	logger := e.logger.With("execution_id", execution.ID, "workflow_type", execution.WorkflowType)

	target := models.ExecutionStatusFailed
	if IsRejection(cause) {
		target = models.ExecutionStatusRejected
	}

	var compensable []Step

	for i := completed - 1; i >= 0; i-- {
		if steps[i].Compensate != nil {
			compensable = append(compensable, steps[i])
		}
	}

	if len(compensable) > 0 {
		execution.Status = models.ExecutionStatusCompensating
		execution.ErrorReason = cause.Error()

		err := e.persistence.Executions().Update(ctx, execution)
		if err != nil {
			return fmt.Errorf("failed to mark execution compensating: %w", err)
		}

		for _, step := range compensable {
			e.compensateStep(ctx, run, step)
		}
	}

	definition.OnFailure(ctx, run, cause)

	now := time.Now().UTC()
	execution.Status = target
	execution.ErrorReason = cause.Error()
	execution.CompletedAt = &now

	err := e.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return fmt.Errorf("failed to mark execution %s: %w", target, err)
	}

	logger.InfoContext(ctx, "Execution terminated", "status", target, "reason", execution.ErrorReason)

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:  events.NewBaseEvent(events.ExecutionFailedEvent, execution.ID),
		Status:     target,
		Error:      execution.ErrorReason,
		DurationMs: now.Sub(execution.CreatedAt).Milliseconds(),
	})

	return nil
}

// compensateStep runs one compensating activity. Exhausted retries are
// escalated to the manual-intervention queue instead of being propagated, so
// the remaining compensations still run.
func (e *Engine) compensateStep(ctx context.Context, run *Run, step Step) {
	execution := run.Execution

	_, err := e.executor.Invoke(ctx, activity.InvocationRequest{
		ExecutionID:    execution.ID,
		StepName:       step.Name + ":comp",
		IdempotencyKey: models.CompensationKey(execution.ID, step.Name),
		RetryPolicy:    step.RetryPolicy,
		Activity: func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			return step.Compensate(ctx, run, idempotencyKey)
		},
	})
	if err == nil {
		return
	}

	e.logger.ErrorContext(ctx, "Compensation exhausted retries, escalating",
		"execution_id", execution.ID, "step", step.Name, "error", err)

	escalation := &models.CompensationEscalation{
		ExecutionID: execution.ID,
		StepName:    step.Name,
		Reason:      err.Error(),
	}

	createErr := e.persistence.Escalations().Create(ctx, escalation)
	if createErr != nil {
		e.logger.ErrorContext(ctx, "Failed to persist compensation escalation",
			"execution_id", execution.ID, "step", step.Name, "error", createErr)
	}

	e.publish(ctx, execution.ID, events.CompensationEscalated{
		BaseEvent: events.NewBaseEvent(events.CompensationEscalatedEvent, execution.ID),
		StepName:  step.Name,
		Reason:    err.Error(),
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, key, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
