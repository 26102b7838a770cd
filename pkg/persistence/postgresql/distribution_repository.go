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

// DistributionRepository handles distribution batches and their per-investor
// results.
type DistributionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDistributionRepository creates a new distribution repository.
func NewDistributionRepository(db *sql.DB, logger *slog.Logger) *DistributionRepository {
	return &DistributionRepository{db: db, logger: logger}
}

// CreateBatch inserts a batch together with its fixed result rows in one
// transaction. Result amounts are never recomputed after this point.
func (r *DistributionRepository) CreateBatch(ctx context.Context, batch *models.DistributionBatch) error {
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO distribution_batches (id, property_id, total_amount, distribution_date, status, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		batch.ID,
		batch.PropertyID,
		batch.TotalAmount,
		batch.DistributionDate,
		batch.Status,
		batch.CreatedAt,
		batch.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	for position, result := range batch.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO distribution_results (batch_id, investment_id, user_id, amount, status, failure_reason, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			batch.ID,
			result.InvestmentID,
			result.UserID,
			result.Amount,
			result.Status,
			result.FailureReason,
			position,
		)
		if err != nil {
			return fmt.Errorf("failed to create distribution result: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// AddResults inserts the computed result rows for an existing batch.
// Re-inserting an existing (batch, investment) pair is a no-op, so a retried
// share-computation step cannot duplicate or overwrite rows.
func (r *DistributionRepository) AddResults(ctx context.Context, batchID string, results []models.DistributionResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for position, result := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO distribution_results (batch_id, investment_id, user_id, amount, status, failure_reason, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (batch_id, investment_id) DO NOTHING
		`,
			batchID,
			result.InvestmentID,
			result.UserID,
			result.Amount,
			result.Status,
			result.FailureReason,
			position,
		)
		if err != nil {
			return fmt.Errorf("failed to add distribution result: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit results for batch %s: %w", batchID, err)
	}

	return nil
}

// GetBatch returns a batch with its results in original order.
func (r *DistributionRepository) GetBatch(ctx context.Context, id string) (*models.DistributionBatch, error) {
	query := `
		SELECT id, property_id, total_amount, distribution_date, status, created_at, completed_at
		FROM distribution_batches
		WHERE id = $1
	`

	var batch models.DistributionBatch

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.PropertyID,
		&batch.TotalAmount,
		&batch.DistributionDate,
		&batch.Status,
		&batch.CreatedAt,
		&batch.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrBatchNotFound
		}

		return nil, fmt.Errorf("failed to query batch %s: %w", id, err)
	}

	err = r.loadResults(ctx, &batch)
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

// UpdateBatchStatus transitions the batch lifecycle status.
func (r *DistributionRepository) UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus, completedAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE distribution_batches SET status = $2, completed_at = $3 WHERE id = $1",
		id, status, completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrBatchNotFound
	}

	return nil
}

// UpdateResult records the terminal outcome of one investor's payout.
func (r *DistributionRepository) UpdateResult(ctx context.Context, batchID, investmentID string, status models.DistributionResultStatus, failureReason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE distribution_results
		SET status = $3, failure_reason = $4
		WHERE batch_id = $1 AND investment_id = $2
	`,
		batchID, investmentID, status, failureReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update result %s/%s: %w", batchID, investmentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.ErrResultNotFound
	}

	return nil
}

// ListDueBatches returns pending batches whose distribution date has passed.
func (r *DistributionRepository) ListDueBatches(ctx context.Context, due time.Time) ([]*models.DistributionBatch, error) {
	query := `
		SELECT id, property_id, total_amount, distribution_date, status, created_at, completed_at
		FROM distribution_batches
		WHERE status = $1 AND distribution_date <= $2
		ORDER BY distribution_date
	`

	rows, err := r.db.QueryContext(ctx, query, models.BatchStatusPending, due)
	if err != nil {
		return nil, fmt.Errorf("failed to query due batches: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	batches := make([]*models.DistributionBatch, 0)

	for rows.Next() {
		var batch models.DistributionBatch

		err := rows.Scan(
			&batch.ID,
			&batch.PropertyID,
			&batch.TotalAmount,
			&batch.DistributionDate,
			&batch.Status,
			&batch.CreatedAt,
			&batch.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}

		batches = append(batches, &batch)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return batches, nil
}

func (r *DistributionRepository) loadResults(ctx context.Context, batch *models.DistributionBatch) error {
	query := `
		SELECT investment_id, user_id, amount, status, failure_reason
		FROM distribution_results
		WHERE batch_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, batch.ID)
	if err != nil {
		return fmt.Errorf("failed to query results for batch %s: %w", batch.ID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	results := make([]models.DistributionResult, 0)

	for rows.Next() {
		var result models.DistributionResult

		err := rows.Scan(
			&result.InvestmentID,
			&result.UserID,
			&result.Amount,
			&result.Status,
			&result.FailureReason,
		)
		if err != nil {
			return fmt.Errorf("failed to scan distribution result: %w", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return fmt.Errorf("error iterating distribution results: %w", err)
	}

	batch.Results = results

	return nil
}
