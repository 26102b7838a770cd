package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
)

// InvocationRepository stores the activity invocation log as one JSON
// document per execution holding the ordered attempt list.
type InvocationRepository struct {
	dir string
	mu  sync.Mutex
}

// NewInvocationRepository creates a new invocation repository.
func NewInvocationRepository(root string) *InvocationRepository {
	return &InvocationRepository{dir: filepath.Join(root, "invocations")}
}

// Append records one activity attempt.
func (r *InvocationRepository) Append(_ context.Context, invocation *models.ActivityInvocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	invocations, err := r.load(invocation.ExecutionID)
	if err != nil {
		return err
	}

	if invocation.Status == models.InvocationStatusSucceeded {
		for _, existing := range invocations {
			if existing.StepName == invocation.StepName && existing.Status == models.InvocationStatusSucceeded {
				return persistence.ErrInvocationConflict
			}
		}
	}

	invocations = append(invocations, invocation)

	return writeDocument(r.dir, invocation.ExecutionID, invocations)
}

// GetSucceeded returns the succeeded invocation for a step, or nil when the
// step has not succeeded yet.
func (r *InvocationRepository) GetSucceeded(_ context.Context, executionID, stepName string) (*models.ActivityInvocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	invocations, err := r.load(executionID)
	if err != nil {
		return nil, err
	}

	for _, invocation := range invocations {
		if invocation.StepName == stepName && invocation.Status == models.InvocationStatusSucceeded {
			return invocation, nil
		}
	}

	return nil, nil
}

// ListByExecution returns all attempts for an execution in append order.
func (r *InvocationRepository) ListByExecution(_ context.Context, executionID string) ([]*models.ActivityInvocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	invocations, err := r.load(executionID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(invocations, func(a, b int) bool {
		return invocations[a].CreatedAt.Before(invocations[b].CreatedAt)
	})

	return invocations, nil
}

func (r *InvocationRepository) load(executionID string) ([]*models.ActivityInvocation, error) {
	var invocations []*models.ActivityInvocation

	err := readDocument(r.dir, executionID, &invocations)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.ActivityInvocation{}, nil
		}

		return nil, fmt.Errorf("failed to load invocations for %s: %w", executionID, err)
	}

	return invocations, nil
}
