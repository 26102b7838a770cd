package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vestra-hq/vestra/pkg/cache"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// ActivityFunc performs one attempt of a named activity. The idempotency key
// is the same on every attempt, so a collaborator that already applied the
// operation treats the call as a no-op.
type ActivityFunc func(ctx context.Context, idempotencyKey string) (json.RawMessage, error)

// InvocationRequest describes one activity to run within a workflow step.
type InvocationRequest struct {
	ExecutionID    string
	StepName       string
	IdempotencyKey string // derived from (ExecutionID, StepName) when empty
	RetryPolicy    models.RetryPolicy
	Activity       ActivityFunc
}

// Executor runs activities with retries, per-attempt timeouts and a durable
// invocation log. It is safe for concurrent use by multiple workflow runs.
type Executor struct {
	invocations persistence.InvocationRepository
	resultCache cache.Cache // optional fast path, may be nil
	logger      *slog.Logger
}

// NewExecutor creates an activity executor. resultCache may be nil; the
// invocation log alone is sufficient for correctness.
func NewExecutor(invocations persistence.InvocationRepository, resultCache cache.Cache, logger *slog.Logger) *Executor {
	return &Executor{
		invocations: invocations,
		resultCache: resultCache,
		logger:      logger.With("module", "activity_executor"),
	}
}

// Invoke runs the activity to completion or permanent failure. Before the
// first attempt it checks the invocation log for an already-succeeded run of
// the same step and returns its stored result, which is what makes re-driven
// executions (crash recovery, task re-delivery) side-effect free.
func (e *Executor) Invoke(ctx context.Context, req InvocationRequest) (json.RawMessage, error) {
	policy := req.RetryPolicy.Normalize()

	key := req.IdempotencyKey
	if key == "" {
		key = models.IdempotencyKey(req.ExecutionID, req.StepName)
	}

	logger := e.logger.With("execution_id", req.ExecutionID, "step", req.StepName)

	if cached, ok := e.cachedResult(ctx, key); ok {
		logger.DebugContext(ctx, "Returning cached activity result")

		return cached, nil
	}

	existing, err := e.invocations.GetSucceeded(ctx, req.ExecutionID, req.StepName)
	if err != nil {
		return nil, fmt.Errorf("failed to check invocation log for %s/%s: %w", req.ExecutionID, req.StepName, err)
	}

	if existing != nil {
		logger.InfoContext(ctx, "Step already succeeded, skipping re-invocation", "attempt", existing.AttemptNumber)

		return existing.Result, nil
	}

	var (
		attempt int
		result  json.RawMessage
	)

	backoff := retry.WithMaxRetries(uint64(policy.MaxAttempts-1), retry.NewFibonacci(policy.BackoffBase))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		attemptErr := e.runAttempt(ctx, req, policy, key, attempt, &result)
		if attemptErr == nil {
			return nil
		}

		if IsTransient(attemptErr) || errors.Is(attemptErr, context.DeadlineExceeded) {
			logger.WarnContext(ctx, "Activity attempt failed, will retry", "attempt", attempt, "error", attemptErr)

			return retry.RetryableError(attemptErr)
		}

		return attemptErr
	})
	if err != nil {
		logger.ErrorContext(ctx, "Activity failed permanently", "attempts", attempt, "error", err)

		return nil, fmt.Errorf("%w: %s after %d attempt(s): %w", ErrPermanentFailure, req.StepName, attempt, err)
	}

	e.storeResult(ctx, key, result)

	return result, nil
}

// runAttempt executes one attempt under the per-attempt timeout and appends
// the corresponding invocation row.
func (e *Executor) runAttempt(ctx context.Context, req InvocationRequest, policy models.RetryPolicy, key string, attempt int, result *json.RawMessage) error {
	attemptCtx, cancel := context.WithTimeout(ctx, policy.AttemptTimeout)
	defer cancel()

	payload, err := req.Activity(attemptCtx, key)
	if err == nil {
		appendErr := e.invocations.Append(ctx, &models.ActivityInvocation{
			ExecutionID:    req.ExecutionID,
			StepName:       req.StepName,
			AttemptNumber:  attempt,
			Status:         models.InvocationStatusSucceeded,
			IdempotencyKey: key,
			Result:         payload,
		})
		if errors.Is(appendErr, persistence.ErrInvocationConflict) {
			// A concurrent delivery of the same task won the race; its stored
			// result is the canonical one.
			winner, loadErr := e.invocations.GetSucceeded(ctx, req.ExecutionID, req.StepName)
			if loadErr != nil {
				return loadErr
			}

			*result = winner.Result

			return nil
		}

		if appendErr != nil {
			return fmt.Errorf("failed to record succeeded invocation: %w", appendErr)
		}

		*result = payload

		return nil
	}

	status := models.InvocationStatusFailed
	if errors.Is(err, context.DeadlineExceeded) {
		status = models.InvocationStatusTimedOut
	}

	appendErr := e.invocations.Append(ctx, &models.ActivityInvocation{
		ExecutionID:    req.ExecutionID,
		StepName:       req.StepName,
		AttemptNumber:  attempt,
		Status:         status,
		IdempotencyKey: key,
		ErrorReason:    err.Error(),
	})
	if appendErr != nil {
		e.logger.ErrorContext(ctx, "Failed to record invocation attempt", "error", appendErr)
	}

	return err
}

func (e *Executor) cachedResult(ctx context.Context, key string) (json.RawMessage, bool) {
	if e.resultCache == nil {
		return nil, false
	}

	value, err := e.resultCache.Get(ctx, e.resultCache.GenerateKey("activity", key))
	if err != nil {
		e.logger.WarnContext(ctx, "Result cache unavailable", "error", err)

		return nil, false
	}

	if value == nil {
		return nil, false
	}

	return value, true
}

func (e *Executor) storeResult(ctx context.Context, key string, result json.RawMessage) {
	if e.resultCache == nil || result == nil {
		return
	}

	err := e.resultCache.Set(ctx, e.resultCache.GenerateKey("activity", key), result, time.Hour)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to cache activity result", "error", err)
	}
}
