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

// TransactionRepository handles transaction audit record file operations.
type TransactionRepository struct {
	dir string
	mu  sync.Mutex
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(root string) *TransactionRepository {
	return &TransactionRepository{dir: filepath.Join(root, "transactions")}
}

// Create stores a transaction record. Writing the same ID again overwrites
// the identical document, so retried steps with deterministic IDs are safe.
func (r *TransactionRepository) Create(_ context.Context, transaction *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if transaction.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transaction ID: %w", err)
		}

		transaction.ID = id.String()
	}

	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now().UTC()
	}

	return writeDocument(r.dir, transaction.ID, transaction)
}

// GetByID returns a transaction by its ID.
func (r *TransactionRepository) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	var transaction models.Transaction

	err := readDocument(r.dir, id, &transaction)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrTransactionNotFound
		}

		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	return &transaction, nil
}

// ListByUser returns a user's transactions in creation order.
func (r *TransactionRepository) ListByUser(_ context.Context, userID string) ([]*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listDocumentIDs(r.dir)
	if err != nil {
		return nil, err
	}

	transactions := make([]*models.Transaction, 0)

	for _, id := range ids {
		var transaction models.Transaction

		err := readDocument(r.dir, id, &transaction)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
		}

		if transaction.UserID == userID {
			transactions = append(transactions, &transaction)
		}
	}

	sort.SliceStable(transactions, func(a, b int) bool {
		return transactions[a].CreatedAt.Before(transactions[b].CreatedAt)
	})

	return transactions, nil
}
