// Package persistence provides the data storage abstraction layer for
// workflow executions, activity invocations and the investment aggregates.
package persistence

import (
	"context"
	"time"

	"github.com/vestra-hq/vestra/pkg/models"
)

// ExecutionRepository stores workflow executions. Implementations must
// enforce the two durability invariants: the step cursor only advances, and a
// terminal execution is never written again.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	Update(ctx context.Context, execution *models.WorkflowExecution) error
}

// InvocationRepository is the append-only activity invocation log.
type InvocationRepository interface {
	Append(ctx context.Context, invocation *models.ActivityInvocation) error
	GetSucceeded(ctx context.Context, executionID, stepName string) (*models.ActivityInvocation, error)
	ListByExecution(ctx context.Context, executionID string) ([]*models.ActivityInvocation, error)
}

// InvestmentRepository stores investment records.
type InvestmentRepository interface {
	Create(ctx context.Context, investment *models.Investment) error
	GetByID(ctx context.Context, id string) (*models.Investment, error)
	ListActiveByProperty(ctx context.Context, propertyID string) ([]*models.Investment, error)
}

// TransactionRepository stores transaction audit records.
type TransactionRepository interface {
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Transaction, error)
}

// LedgerRepository is the append-only wallet ledger. Append computes
// BalanceAfter from the running sum inside the same transaction, so
// concurrent credit and debit workflows cannot lose updates.
type LedgerRepository interface {
	Append(ctx context.Context, userID string, amount int64, referenceID string) (*models.WalletLedgerEntry, error)
	Balance(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*models.WalletLedgerEntry, error)
}

// DistributionRepository stores distribution batches and their per-investor
// results.
type DistributionRepository interface {
	CreateBatch(ctx context.Context, batch *models.DistributionBatch) error
	AddResults(ctx context.Context, batchID string, results []models.DistributionResult) error
	GetBatch(ctx context.Context, id string) (*models.DistributionBatch, error)
	UpdateBatchStatus(ctx context.Context, id string, status models.BatchStatus, completedAt *time.Time) error
	UpdateResult(ctx context.Context, batchID, investmentID string, status models.DistributionResultStatus, failureReason string) error
	ListDueBatches(ctx context.Context, due time.Time) ([]*models.DistributionBatch, error)
}

// EscalationRepository is the manual-intervention queue for compensations
// that exhausted their retries.
type EscalationRepository interface {
	Create(ctx context.Context, escalation *models.CompensationEscalation) error
	ListOpen(ctx context.Context) ([]*models.CompensationEscalation, error)
}

// Persistence aggregates the repositories behind a single storage backend.
type Persistence interface {
	Executions() ExecutionRepository
	Invocations() InvocationRepository
	Investments() InvestmentRepository
	Transactions() TransactionRepository
	Ledger() LedgerRepository
	Distributions() DistributionRepository
	Escalations() EscalationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
