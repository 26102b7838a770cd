// Package postgresql provides PostgreSQL persistence implementation for the
// orchestration subsystem.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db               *sql.DB
	logger           *slog.Logger
	executionRepo    *ExecutionRepository
	invocationRepo   *InvocationRepository
	investmentRepo   *InvestmentRepository
	transactionRepo  *TransactionRepository
	ledgerRepo       *LedgerRepository
	distributionRepo *DistributionRepository
	escalationRepo   *EscalationRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:               database,
		logger:           logger,
		executionRepo:    NewExecutionRepository(database, logger),
		invocationRepo:   NewInvocationRepository(database, logger),
		investmentRepo:   NewInvestmentRepository(database, logger),
		transactionRepo:  NewTransactionRepository(database, logger),
		ledgerRepo:       NewLedgerRepository(database, logger),
		distributionRepo: NewDistributionRepository(database, logger),
		escalationRepo:   NewEscalationRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) Invocations() persistence.InvocationRepository {
	return p.invocationRepo
}

func (p *Persistence) Investments() persistence.InvestmentRepository {
	return p.investmentRepo
}

func (p *Persistence) Transactions() persistence.TransactionRepository {
	return p.transactionRepo
}

func (p *Persistence) Ledger() persistence.LedgerRepository {
	return p.ledgerRepo
}

func (p *Persistence) Distributions() persistence.DistributionRepository {
	return p.distributionRepo
}

func (p *Persistence) Escalations() persistence.EscalationRepository {
	return p.escalationRepo
}
