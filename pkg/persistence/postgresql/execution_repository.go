package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Create inserts a new workflow execution.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	now := time.Now().UTC()

	if execution.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution ID: %w", err)
		}

		execution.ID = id.String()
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	if execution.Status == "" {
		execution.Status = models.ExecutionStatusPending
	}

	query := `
		INSERT INTO workflow_executions
			(id, workflow_type, input, status, current_step_index, error_reason, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowType,
		nullableJSON(execution.Input),
		execution.Status,
		execution.CurrentStepIndex,
		execution.ErrorReason,
		execution.CreatedAt,
		execution.UpdatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `
		SELECT
			id
		  , workflow_type
		  , input
		  , status
		  , current_step_index
		  , error_reason
		  , created_at
		  , updated_at
		  , completed_at
		FROM workflow_executions
		WHERE id = $1
	`

	var (
		execution models.WorkflowExecution
		input     []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.WorkflowType,
		&input,
		&execution.Status,
		&execution.CurrentStepIndex,
		&execution.ErrorReason,
		&execution.CreatedAt,
		&execution.UpdatedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	execution.Input = input

	return &execution, nil
}

// Update persists execution progress. The WHERE clause enforces the two
// durability invariants in a single statement: a terminal row is never
// rewritten, and the step cursor never moves backwards.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	execution.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workflow_executions
		SET status = $2,
			current_step_index = $3,
			error_reason = $4,
			updated_at = $5,
			completed_at = $6
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed', 'rejected')
		  AND current_step_index <= $3
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Status,
		execution.CurrentStepIndex,
		execution.ErrorReason,
		execution.UpdatedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if rowsAffected == 0 {
		return r.classifyRejectedUpdate(ctx, execution)
	}

	return nil
}

// classifyRejectedUpdate turns a zero-row update into the precise invariant
// violation for the caller.
func (r *ExecutionRepository) classifyRejectedUpdate(ctx context.Context, execution *models.WorkflowExecution) error {
	current, err := r.GetByID(ctx, execution.ID)
	if err != nil {
		return err
	}

	if current.Status.IsTerminal() {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionTerminal)
	}

	return persistence.NewExecutionError("Update", execution.ID, persistence.ErrCursorRegression)
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	return raw
}
