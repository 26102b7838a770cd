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

// EscalationRepository handles the manual-intervention queue.
type EscalationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEscalationRepository creates a new escalation repository.
func NewEscalationRepository(db *sql.DB, logger *slog.Logger) *EscalationRepository {
	return &EscalationRepository{db: db, logger: logger}
}

// Create inserts a new escalation entry.
func (r *EscalationRepository) Create(ctx context.Context, escalation *models.CompensationEscalation) error {
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

	query := `
		INSERT INTO compensation_escalations (id, execution_id, step_name, reason, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		escalation.ID,
		escalation.ExecutionID,
		escalation.StepName,
		escalation.Reason,
		escalation.CreatedAt,
		escalation.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// ListOpen returns the unresolved escalations, oldest first.
func (r *EscalationRepository) ListOpen(ctx context.Context) ([]*models.CompensationEscalation, error) {
	query := `
		SELECT id, execution_id, step_name, reason, created_at, resolved_at
		FROM compensation_escalations
		WHERE resolved_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open escalations: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	escalations := make([]*models.CompensationEscalation, 0)

	for rows.Next() {
		var escalation models.CompensationEscalation

		err := rows.Scan(
			&escalation.ID,
			&escalation.ExecutionID,
			&escalation.StepName,
			&escalation.Reason,
			&escalation.CreatedAt,
			&escalation.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}

		escalations = append(escalations, &escalation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating escalations: %w", err)
	}

	return escalations, nil
}
