package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// InvocationRepository handles the append-only activity invocation log.
type InvocationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInvocationRepository creates a new invocation repository.
func NewInvocationRepository(db *sql.DB, logger *slog.Logger) *InvocationRepository {
	return &InvocationRepository{db: db, logger: logger}
}

// Append records one activity attempt. The partial unique index on succeeded
// rows rejects a second success for the same (execution, step).
func (r *InvocationRepository) Append(ctx context.Context, invocation *models.ActivityInvocation) error {
	if invocation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate invocation ID: %w", err)
		}

		invocation.ID = id.String()
	}

	if invocation.CreatedAt.IsZero() {
		invocation.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_invocations
			(id, execution_id, step_name, attempt_number, status, idempotency_key, result, error_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		invocation.ID,
		invocation.ExecutionID,
		invocation.StepName,
		invocation.AttemptNumber,
		invocation.Status,
		invocation.IdempotencyKey,
		nullableJSON(invocation.Result),
		invocation.ErrorReason,
		invocation.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "uniq_invocation_succeeded") {
			return persistence.ErrInvocationConflict
		}

		return fmt.Errorf("failed to append invocation for %s/%s: %w", invocation.ExecutionID, invocation.StepName, err)
	}

	return nil
}

// GetSucceeded returns the succeeded invocation for a step, or nil when the
// step has not succeeded yet.
func (r *InvocationRepository) GetSucceeded(ctx context.Context, executionID, stepName string) (*models.ActivityInvocation, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , step_name
		  , attempt_number
		  , status
		  , idempotency_key
		  , result
		  , error_reason
		  , created_at
		FROM activity_invocations
		WHERE execution_id = $1 AND step_name = $2 AND status = 'succeeded'
	`

	invocation, err := r.scanInvocation(r.db.QueryRowContext(ctx, query, executionID, stepName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query succeeded invocation for %s/%s: %w", executionID, stepName, err)
	}

	return invocation, nil
}

// ListByExecution returns all attempts for an execution in append order.
func (r *InvocationRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.ActivityInvocation, error) {
	query := `
		SELECT
			id
		  , execution_id
		  , step_name
		  , attempt_number
		  , status
		  , idempotency_key
		  , result
		  , error_reason
		  , created_at
		FROM activity_invocations
		WHERE execution_id = $1
		ORDER BY created_at, attempt_number
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations for %s: %w", executionID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	invocations := make([]*models.ActivityInvocation, 0)

	for rows.Next() {
		invocation, err := r.scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}

		invocations = append(invocations, invocation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating invocations: %w", err)
	}

	return invocations, nil
}

func (r *InvocationRepository) scanInvocation(scanner interface {
	Scan(dest ...any) error
}) (*models.ActivityInvocation, error) {
	var (
		invocation models.ActivityInvocation
		result     []byte
	)

	err := scanner.Scan(
		&invocation.ID,
		&invocation.ExecutionID,
		&invocation.StepName,
		&invocation.AttemptNumber,
		&invocation.Status,
		&invocation.IdempotencyKey,
		&result,
		&invocation.ErrorReason,
		&invocation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invocation.Result = result

	return &invocation, nil
}
