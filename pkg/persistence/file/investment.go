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

// InvestmentRepository handles investment record file operations.
type InvestmentRepository struct {
	dir string
	mu  sync.Mutex
}

// NewInvestmentRepository creates a new investment repository.
func NewInvestmentRepository(root string) *InvestmentRepository {
	return &InvestmentRepository{dir: filepath.Join(root, "investments")}
}

// Create stores a new investment record.
func (r *InvestmentRepository) Create(_ context.Context, investment *models.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if investment.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate investment ID: %w", err)
		}

		investment.ID = id.String()
	}

	if investment.CreatedAt.IsZero() {
		investment.CreatedAt = time.Now().UTC()
	}

	return writeDocument(r.dir, investment.ID, investment)
}

// GetByID returns an investment by its ID.
func (r *InvestmentRepository) GetByID(_ context.Context, id string) (*models.Investment, error) {
	var investment models.Investment

	err := readDocument(r.dir, id, &investment)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrInvestmentNotFound
		}

		return nil, fmt.Errorf("failed to load investment %s: %w", id, err)
	}

	return &investment, nil
}

// ListActiveByProperty returns the active investments for a property in
// creation order.
func (r *InvestmentRepository) ListActiveByProperty(ctx context.Context, propertyID string) ([]*models.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listDocumentIDs(r.dir)
	if err != nil {
		return nil, err
	}

	investments := make([]*models.Investment, 0)

	for _, id := range ids {
		var investment models.Investment

		err := readDocument(r.dir, id, &investment)
		if err != nil {
			return nil, fmt.Errorf("failed to load investment %s: %w", id, err)
		}

		if investment.PropertyID == propertyID && investment.Status == models.InvestmentStatusActive {
			investments = append(investments, &investment)
		}
	}

	sort.SliceStable(investments, func(a, b int) bool {
		return investments[a].CreatedAt.Before(investments[b].CreatedAt)
	})

	return investments, nil
}
