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

// InvestmentRepository handles investment record database operations.
type InvestmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInvestmentRepository creates a new investment repository.
func NewInvestmentRepository(db *sql.DB, logger *slog.Logger) *InvestmentRepository {
	return &InvestmentRepository{db: db, logger: logger}
}

// Create inserts a new investment record. Inserting the same ID again is a
// no-op, so workflow steps with deterministic IDs can be retried safely.
func (r *InvestmentRepository) Create(ctx context.Context, investment *models.Investment) error {
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

	query := `
		INSERT INTO investments (id, investor_id, property_id, amount, payment_reference, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		investment.ID,
		investment.InvestorID,
		investment.PropertyID,
		investment.Amount,
		investment.PaymentReference,
		investment.Status,
		investment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}

	return nil
}

// GetByID returns an investment by its ID.
func (r *InvestmentRepository) GetByID(ctx context.Context, id string) (*models.Investment, error) {
	query := `
		SELECT id, investor_id, property_id, amount, payment_reference, status, created_at
		FROM investments
		WHERE id = $1
	`

	var investment models.Investment

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&investment.ID,
		&investment.InvestorID,
		&investment.PropertyID,
		&investment.Amount,
		&investment.PaymentReference,
		&investment.Status,
		&investment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInvestmentNotFound
		}

		return nil, fmt.Errorf("failed to query investment %s: %w", id, err)
	}

	return &investment, nil
}

// ListActiveByProperty returns the active investments for a property in
// creation order.
func (r *InvestmentRepository) ListActiveByProperty(ctx context.Context, propertyID string) ([]*models.Investment, error) {
	query := `
		SELECT id, investor_id, property_id, amount, payment_reference, status, created_at
		FROM investments
		WHERE property_id = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, propertyID, models.InvestmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query investments for property %s: %w", propertyID, err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	investments := make([]*models.Investment, 0)

	for rows.Next() {
		var investment models.Investment

		err := rows.Scan(
			&investment.ID,
			&investment.InvestorID,
			&investment.PropertyID,
			&investment.Amount,
			&investment.PaymentReference,
			&investment.Status,
			&investment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}

		investments = append(investments, &investment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}

	return investments, nil
}
