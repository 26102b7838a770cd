package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// ExecutionRepository handles workflow execution file operations.
type ExecutionRepository struct {
	dir string
	mu  sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{dir: filepath.Join(root, "executions")}
}

// Create stores a new workflow execution.
func (r *ExecutionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	return writeDocument(r.dir, execution.ID, execution)
}

// GetByID returns an execution by its ID.
func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := readDocument(r.dir, id, &execution)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

// Update persists execution progress, enforcing write-once terminal status
// and a monotonic step cursor.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.GetByID(ctx, execution.ID)
	if err != nil {
		return err
	}

	if current.Status.IsTerminal() {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionTerminal)
	}

	if execution.CurrentStepIndex < current.CurrentStepIndex {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrCursorRegression)
	}

	execution.UpdatedAt = time.Now().UTC()

	return writeDocument(r.dir, execution.ID, execution)
}
