package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vestra-hq/vestra/pkg/activity"
	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/protocol"
)

// Step names of the ROI distribution workflow.
const (
	StepComputeShares     = "compute_shares"
	StepDistributePayouts = "distribute_payouts"
	StepCompleteBatch     = "complete_batch"
)

// Sub-saga step names, scoped per investment inside the fan-out step.
const (
	SubStepProcessPayment    = "process_payment"
	SubStepRecordTransaction = "record_transaction"
	SubStepCreditWallet      = "credit_wallet_balance"
	SubStepNotifyInvestor    = "notify_investor"
)

const defaultMaxConcurrentPayouts = 8

// DistributionCoordinator is the ROI distribution workflow definition. It
// fixes each investor's share once, then fans out one independent sub-saga
// per investor over a bounded pool. A failed payout marks only its own
// result; it never aborts the batch or touches other investors' payouts.
type DistributionCoordinator struct {
	persistence   persistence.Persistence
	executor      *activity.Executor
	payments      protocol.PaymentProcessor
	notifier      protocol.NotificationService
	eventBus      eventbus.EventPublisher
	logger        *slog.Logger
	maxConcurrent int
}

// NewDistributionCoordinator creates the ROI distribution workflow
// definition. maxConcurrent bounds the in-flight payout sub-sagas; zero or
// negative means the default.
func NewDistributionCoordinator(
	persist persistence.Persistence,
	executor *activity.Executor,
	payments protocol.PaymentProcessor,
	notifier protocol.NotificationService,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
	maxConcurrent int,
) *DistributionCoordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentPayouts
	}

	return &DistributionCoordinator{
		persistence:   persist,
		executor:      executor,
		payments:      payments,
		notifier:      notifier,
		eventBus:      eventBus,
		logger:        logger.With("module", "distribution_coordinator"),
		maxConcurrent: maxConcurrent,
	}
}

func (c *DistributionCoordinator) Type() models.WorkflowType {
	return models.WorkflowTypeROIDistribution
}

func (c *DistributionCoordinator) Steps() []Step {
	return []Step{
		{Name: StepComputeShares, Run: c.computeShares},
		{Name: StepDistributePayouts, Run: c.distributePayouts},
		{Name: StepCompleteBatch, Run: c.completeBatch},
	}
}

// OnFailure logs the terminal failure. The batch keeps whatever per-result
// state was reached; nothing is rolled back.
func (c *DistributionCoordinator) OnFailure(ctx context.Context, run *Run, cause error) {
	c.logger.ErrorContext(ctx, "Distribution execution failed",
		"execution_id", run.Execution.ID, "error", cause)
}

// computeShares fixes each investor's share of the batch total using the
// investments active at this moment and persists the pending result rows.
// The amounts never change afterwards.
func (c *DistributionCoordinator) computeShares(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	batch, err := c.batch(ctx, run)
	if err != nil {
		return nil, err
	}

	if len(batch.Results) == 0 {
		investments, err := c.persistence.Investments().ListActiveByProperty(ctx, batch.PropertyID)
		if err != nil {
			return nil, fmt.Errorf("failed to list investments for property %s: %w", batch.PropertyID, err)
		}

		if len(investments) == 0 {
			return nil, fmt.Errorf("property %s has no active investments", batch.PropertyID)
		}

		results := models.ComputeShares(batch.TotalAmount, investments)

		err = c.persistence.Distributions().AddResults(ctx, batch.ID, results)
		if err != nil {
			return nil, fmt.Errorf("failed to persist shares for batch %s: %w", batch.ID, err)
		}

		batch.Results = results
	}

	err = c.persistence.Distributions().UpdateBatchStatus(ctx, batch.ID, models.BatchStatusRunning, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to mark batch running: %w", err)
	}

	return json.Marshal(map[string]any{"batch_id": batch.ID, "investors": len(batch.Results)})
}

// distributePayouts fans out one sub-saga per pending result over a bounded
// worker pool and waits for all of them. The step itself succeeds even when
// individual payouts fail; their failure is recorded on the result row.
func (c *DistributionCoordinator) distributePayouts(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	batch, err := c.batch(ctx, run)
	if err != nil {
		return nil, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	// Results settled by an earlier run are tallied before any goroutine is
	// spawned, so the counters are never written from two goroutines without
	// the mutex.
	pending := make([]models.DistributionResult, 0, len(batch.Results))

	for _, result := range batch.Results {
		switch result.Status {
		case models.DistributionResultSuccess:
			succeeded++
		case models.DistributionResultFailed:
			failed++
		default:
			pending = append(pending, result)
		}
	}

	semaphore := make(chan struct{}, c.maxConcurrent)

	for _, result := range pending {
		wg.Add(1)

		go func(result models.DistributionResult) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			err := c.runPayout(ctx, run.Execution.ID, batch, result)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed++
			} else {
				succeeded++
			}
		}(result)
	}

	wg.Wait()

	c.logger.InfoContext(ctx, "Batch fan-out finished",
		"batch_id", batch.ID, "succeeded", succeeded, "failed", failed)

	return json.Marshal(map[string]int{"succeeded": succeeded, "failed": failed})
}

// runPayout drives one investor's payout sub-saga. Every side-effecting call
// goes through the activity executor with a key scoped to the investment, so
// a re-driven batch resumes each payout at its first unfinished sub-step.
func (c *DistributionCoordinator) runPayout(ctx context.Context, executionID string, batch *models.DistributionBatch, result models.DistributionResult) error {
	logger := c.logger.With("batch_id", batch.ID, "investment_id", result.InvestmentID, "user_id", result.UserID)

	charge, err := c.invokeSubStep(ctx, executionID, batch.ID, result.InvestmentID, SubStepProcessPayment,
		func(ctx context.Context, idempotencyKey string) (json.RawMessage, error) {
			charge, err := c.payments.Charge(ctx, idempotencyKey, result.UserID, result.Amount, "roi_payout")
			if err != nil {
				return nil, fmt.Errorf("payout payment failed: %w", err)
			}

			if !charge.Success {
				return nil, fmt.Errorf("payout declined: %s", charge.Message)
			}

			return json.Marshal(charge)
		})
	if err != nil {
		return c.failPayout(ctx, batch.ID, result.InvestmentID, err)
	}

	var chargeResult protocol.ChargeResult

	err = json.Unmarshal(charge, &chargeResult)
	if err != nil {
		return c.failPayout(ctx, batch.ID, result.InvestmentID, fmt.Errorf("failed to decode payout charge: %w", err))
	}

	transactionID := deterministicID(batch.ID, result.InvestmentID+":payout")

	_, err = c.invokeSubStep(ctx, executionID, batch.ID, result.InvestmentID, SubStepRecordTransaction,
		func(ctx context.Context, _ string) (json.RawMessage, error) {
			transaction := &models.Transaction{
				ID:          transactionID,
				UserID:      result.UserID,
				Type:        models.TransactionTypeROIPayout,
				Amount:      result.Amount,
				ReferenceID: batch.ID,
			}

			err := c.persistence.Transactions().Create(ctx, transaction)
			if err != nil {
				return nil, fmt.Errorf("failed to record payout transaction: %w", err)
			}

			return json.Marshal(map[string]string{"transaction_id": transaction.ID})
		})
	if err != nil {
		return c.failPayout(ctx, batch.ID, result.InvestmentID, err)
	}

	_, err = c.invokeSubStep(ctx, executionID, batch.ID, result.InvestmentID, SubStepCreditWallet,
		func(ctx context.Context, _ string) (json.RawMessage, error) {
			entry, err := c.persistence.Ledger().Append(ctx, result.UserID, result.Amount, transactionID)
			if err != nil {
				return nil, fmt.Errorf("failed to credit wallet: %w", err)
			}

			return json.Marshal(map[string]any{"entry_id": entry.ID, "balance_after": entry.BalanceAfter})
		})
	if err != nil {
		return c.failPayout(ctx, batch.ID, result.InvestmentID, err)
	}

	_, err = c.invokeSubStep(ctx, executionID, batch.ID, result.InvestmentID, SubStepNotifyInvestor,
		func(ctx context.Context, _ string) (json.RawMessage, error) {
			err := c.notifier.Send(ctx, result.UserID, "distribution.received", map[string]any{
				"batch_id":    batch.ID,
				"property_id": batch.PropertyID,
				"amount":      result.Amount,
			})
			if err != nil {
				// Best-effort, a missed notification never fails the payout.
				logger.WarnContext(ctx, "Payout notification not delivered", "error", err)
			}

			return json.Marshal(map[string]bool{"delivered": err == nil})
		})
	if err != nil {
		return c.failPayout(ctx, batch.ID, result.InvestmentID, err)
	}

	err = c.persistence.Distributions().UpdateResult(ctx, batch.ID, result.InvestmentID, models.DistributionResultSuccess, "")
	if err != nil {
		return fmt.Errorf("failed to record payout success: %w", err)
	}

	logger.InfoContext(ctx, "Payout completed", "amount", result.Amount)

	return nil
}

// invokeSubStep runs one side-effecting call of a payout sub-saga through
// the activity executor, namespacing the invocation log entry and the
// idempotency key by investment.
func (c *DistributionCoordinator) invokeSubStep(ctx context.Context, executionID, batchID, investmentID, subStep string, fn activity.ActivityFunc) (json.RawMessage, error) {
	return c.executor.Invoke(ctx, activity.InvocationRequest{
		ExecutionID:    executionID,
		StepName:       investmentID + ":" + subStep,
		IdempotencyKey: batchID + ":" + investmentID + ":" + subStep,
		Activity:       fn,
	})
}

func (c *DistributionCoordinator) failPayout(ctx context.Context, batchID, investmentID string, cause error) error {
	c.logger.ErrorContext(ctx, "Payout failed",
		"batch_id", batchID, "investment_id", investmentID, "error", cause)

	err := c.persistence.Distributions().UpdateResult(ctx, batchID, investmentID, models.DistributionResultFailed, cause.Error())
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to record payout failure",
			"batch_id", batchID, "investment_id", investmentID, "error", err)
	}

	return cause
}

// completeBatch marks the batch completed and publishes the aggregate
// outcome, including the failures left for manual follow-up.
func (c *DistributionCoordinator) completeBatch(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	batch, err := c.batch(ctx, run)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	err = c.persistence.Distributions().UpdateBatchStatus(ctx, batch.ID, models.BatchStatusCompleted, &now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark batch completed: %w", err)
	}

	failures := batch.FailedResults()

	// A result can be left pending when recording its outcome failed; only
	// explicit successes count as paid out.
	succeeded := 0

	for _, result := range batch.Results {
		if result.Status == models.DistributionResultSuccess {
			succeeded++
		}
	}

	if len(failures) > 0 {
		c.logger.WarnContext(ctx, "Batch completed with failed payouts",
			"batch_id", batch.ID, "failed", len(failures))
	}

	if c.eventBus != nil {
		event := events.DistributionCompleted{
			BaseEvent:   events.NewBaseEvent(events.DistributionCompletedEvent, run.Execution.ID),
			BatchID:     batch.ID,
			Succeeded:   succeeded,
			Failed:      len(failures),
			TotalAmount: batch.TotalAmount,
		}

		err = c.eventBus.Publish(ctx, batch.ID, event)
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to publish batch completion", "batch_id", batch.ID, "error", err)
		}
	}

	return json.Marshal(map[string]int{"succeeded": succeeded, "failed": len(failures)})
}

func (c *DistributionCoordinator) batch(ctx context.Context, run *Run) (*models.DistributionBatch, error) {
	var input models.DistributionInput

	err := json.Unmarshal(run.Execution.Input, &input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode distribution input: %w", err)
	}

	batch, err := c.persistence.Distributions().GetBatch(ctx, input.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %s: %w", input.BatchID, err)
	}

	return batch, nil
}
