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
)

// LedgerRepository stores each user's wallet ledger as one JSON document
// holding the ordered entry list. The repository mutex serializes appends,
// which is what keeps concurrent credit/debit workflows from losing updates.
type LedgerRepository struct {
	dir string
	mu  sync.Mutex
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(root string) *LedgerRepository {
	return &LedgerRepository{dir: filepath.Join(root, "ledger")}
}

// Append writes one ledger entry with balance_after derived from the running sum.
func (r *LedgerRepository) Append(_ context.Context, userID string, amount int64, referenceID string) (*models.WalletLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ledger entry ID: %w", err)
	}

	entries, err := r.load(userID)
	if err != nil {
		return nil, err
	}

	var balance int64
	for _, entry := range entries {
		balance += entry.Amount
	}

	entry := &models.WalletLedgerEntry{
		ID:           id.String(),
		UserID:       userID,
		Amount:       amount,
		ReferenceID:  referenceID,
		BalanceAfter: balance + amount,
		CreatedAt:    time.Now().UTC(),
	}

	entries = append(entries, entry)

	err = writeDocument(r.dir, userID, entries)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Balance derives the wallet balance by summing the ledger.
func (r *LedgerRepository) Balance(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(userID)
	if err != nil {
		return 0, err
	}

	var balance int64
	for _, entry := range entries {
		balance += entry.Amount
	}

	return balance, nil
}

// ListByUser returns a user's ledger entries in append order.
func (r *LedgerRepository) ListByUser(_ context.Context, userID string) ([]*models.WalletLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(userID)
}

func (r *LedgerRepository) load(userID string) ([]*models.WalletLedgerEntry, error) {
	var entries []*models.WalletLedgerEntry

	err := readDocument(r.dir, userID, &entries)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*models.WalletLedgerEntry{}, nil
		}

		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}

	return entries, nil
}
