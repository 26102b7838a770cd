package file

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
)

// EscalationRepository handles the manual-intervention queue.
type EscalationRepository struct {
	dir string
	mu  sync.Mutex
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(root string) *EscalationRepository {
	return &EscalationRepository{dir: filepath.Join(root, "escalations")}
}

// Create stores a new escalation entry.
func (r *EscalationRepository) Create(_ context.Context, escalation *models.CompensationEscalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if escalation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate escalation ID: %w", err)
		}

		escalation.ID = id.String()
	}

	if escalation.CreatedAt.IsZero() {
		escalation.CreatedAt = time.Now().UTC()
	}

	return writeDocument(r.dir, escalation.ID, escalation)
}

// ListOpen returns the unresolved escalations, oldest first.
func (r *EscalationRepository) ListOpen(_ context.Context) ([]*models.CompensationEscalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listDocumentIDs(r.dir)
	if err != nil {
		return nil, err
	}

	escalations := make([]*models.CompensationEscalation, 0)

	for _, id := range ids {
		var escalation models.CompensationEscalation

		err := readDocument(r.dir, id, &escalation)
		if err != nil {
			return nil, fmt.Errorf("failed to load escalation %s: %w", id, err)
		}

		if escalation.ResolvedAt == nil {
			escalations = append(escalations, &escalation)
		}
	}

	sort.SliceStable(escalations, func(a, b int) bool {
		return escalations[a].CreatedAt.Before(escalations[b].CreatedAt)
	})

	return escalations, nil
}
