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

// DistributionRepository handles distribution batch file operations.
type DistributionRepository struct {
	dir string
	mu  sync.Mutex
}

// NewDistributionRepository creates a new distribution repository.
func NewDistributionRepository(root string) *DistributionRepository {
	return &DistributionRepository{dir: filepath.Join(root, "distributions")}
}

// CreateBatch stores a batch with its fixed result rows.
func (r *DistributionRepository) CreateBatch(_ context.Context, batch *models.DistributionBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batch.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate batch ID: %w", err)
		}

		batch.ID = id.String()
	}

	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	if batch.Status == "" {
		batch.Status = models.BatchStatusPending
	}

	return writeDocument(r.dir, batch.ID, batch)
}

// AddResults inserts the computed result rows for an existing batch. Result
// rows already present for an investment are left untouched.
func (r *DistributionRepository) AddResults(_ context.Context, batchID string, results []models.DistributionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.load(batchID)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(batch.Results))
	for _, result := range batch.Results {
		existing[result.InvestmentID] = true
	}

	for _, result := range results {
		if !existing[result.InvestmentID] {
			batch.Results = append(batch.Results, result)
		}
	}

	return writeDocument(r.dir, batchID, batch)
}

// GetBatch returns a batch with its results.
func (r *DistributionRepository) GetBatch(_ context.Context, id string) (*models.DistributionBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(id)
}

// UpdateBatchStatus transitions the batch lifecycle status.
func (r *DistributionRepository) UpdateBatchStatus(_ context.Context, id string, status models.BatchStatus, completedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.load(id)
	if err != nil {
		return err
	}

	batch.Status = status
	batch.CompletedAt = completedAt

	return writeDocument(r.dir, id, batch)
}

// UpdateResult records the terminal outcome of one investor's payout.
func (r *DistributionRepository) UpdateResult(_ context.Context, batchID, investmentID string, status models.DistributionResultStatus, failureReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, err := r.load(batchID)
	if err != nil {
		return err
	}

	for i := range batch.Results {
		if batch.Results[i].InvestmentID == investmentID {
			batch.Results[i].Status = status
			batch.Results[i].FailureReason = failureReason

			return writeDocument(r.dir, batchID, batch)
		}
	}

	return persistence.ErrResultNotFound
}

// ListDueBatches returns pending batches whose distribution date has passed.
func (r *DistributionRepository) ListDueBatches(_ context.Context, due time.Time) ([]*models.DistributionBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listDocumentIDs(r.dir)
	if err != nil {
		return nil, err
	}

	batches := make([]*models.DistributionBatch, 0)

	for _, id := range ids {
		batch, err := r.load(id)
		if err != nil {
			return nil, err
		}

		if batch.Status == models.BatchStatusPending && !batch.DistributionDate.After(due) {
			batches = append(batches, batch)
		}
	}

	sort.SliceStable(batches, func(a, b int) bool {
		return batches[a].DistributionDate.Before(batches[b].DistributionDate)
	})

	return batches, nil
}

func (r *DistributionRepository) load(id string) (*models.DistributionBatch, error) {
	var batch models.DistributionBatch

	err := readDocument(r.dir, id, &batch)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}

	return &batch, nil
}
