// Package file provides file-based persistence for local development and
// tests. Entities are stored as JSON documents under the root directory; a
// per-repository mutex gives the same invariant guarantees the SQL backend
// enforces with constraints.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vestra-hq/vestra/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root             string
	executionRepo    *ExecutionRepository
	invocationRepo   *InvocationRepository
	investmentRepo   *InvestmentRepository
	transactionRepo  *TransactionRepository
	ledgerRepo       *LedgerRepository
	distributionRepo *DistributionRepository
	escalationRepo   *EscalationRepository
}

// NewPersistence creates a new file-backed persistence layer rooted at the
// given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		executionRepo:    NewExecutionRepository(cleanRoot),
		invocationRepo:   NewInvocationRepository(cleanRoot),
		investmentRepo:   NewInvestmentRepository(cleanRoot),
		transactionRepo:  NewTransactionRepository(cleanRoot),
		ledgerRepo:       NewLedgerRepository(cleanRoot),
		distributionRepo: NewDistributionRepository(cleanRoot),
		escalationRepo:   NewEscalationRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory is usable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(fp.root, 0o755)
	if err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) Invocations() persistence.InvocationRepository {
	return fp.invocationRepo
}

func (fp *Persistence) Investments() persistence.InvestmentRepository {
	return fp.investmentRepo
}

func (fp *Persistence) Transactions() persistence.TransactionRepository {
	return fp.transactionRepo
}

func (fp *Persistence) Ledger() persistence.LedgerRepository {
	return fp.ledgerRepo
}

func (fp *Persistence) Distributions() persistence.DistributionRepository {
	return fp.distributionRepo
}

func (fp *Persistence) Escalations() persistence.EscalationRepository {
	return fp.escalationRepo
}

// writeDocument marshals v and writes it under dir/<id>.json.
func writeDocument(dir, id string, v any) error {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	err = os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", id, err)
	}

	return nil
}

// readDocument unmarshals dir/<id>.json into v. Returns os.ErrNotExist when
// the document does not exist.
func readDocument(dir, id string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}

	return nil
}

// listDocumentIDs returns the document ids in dir, sorted for deterministic
// iteration.
func listDocumentIDs(dir string) ([]string, error) {
	entries, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry, ".json"))
	}

	sort.Strings(ids)

	return ids, nil
}
