package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
)

// LedgerRepository handles the append-only wallet ledger.
type LedgerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *sql.DB, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger}
}

// Append writes one ledger entry, computing balance_after from the running
// sum inside the same transaction. A per-user advisory lock serializes
// concurrent appends for the same wallet so balances never interleave.
func (r *LedgerRepository) Append(ctx context.Context, userID string, amount int64, referenceID string) (*models.WalletLedgerEntry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ledger entry ID: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet for user %s: %w", userID, err)
	}

	var balance int64

	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM wallet_ledger_entries WHERE user_id = $1",
		userID,
	).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger for user %s: %w", userID, err)
	}

	entry := &models.WalletLedgerEntry{
		ID:           id.String(),
		UserID:       userID,
		Amount:       amount,
		ReferenceID:  referenceID,
		BalanceAfter: balance + amount,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger_entries (id, user_id, amount, reference_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID,
		entry.UserID,
		entry.Amount,
		entry.ReferenceID,
		entry.BalanceAfter,
		entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit ledger entry: %w", err)
	}

	return entry, nil
}

// Balance derives the wallet balance by summing the ledger. There is no
// cached balance column to read.
func (r *LedgerRepository) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64

	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM wallet_ledger_entries WHERE user_id = $1",
		userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger for user %s: %w", userID, err)
	}

	return balance, nil
}

// ListByUser returns a user's ledger entries in append order.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID string) ([]*models.WalletLedgerEntry, error) {
	query := `
		SELECT id, user_id, amount, reference_id, balance_after, created_at
		FROM wallet_ledger_entries
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for user %s: %w", userID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.WalletLedgerEntry, 0)

	for rows.Next() {
		var entry models.WalletLedgerEntry

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.ReferenceID,
			&entry.BalanceAfter,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
