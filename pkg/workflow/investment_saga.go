package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/protocol"
)

// Step names of the investment-creation saga, in execution order.
const (
	StepVerifyCompliance  = "verify_compliance"
	StepProcessPayment    = "process_payment"
	StepCreateInvestment  = "create_investment_record"
	StepRecordTransaction = "record_ledger_transaction"
	StepDebitWallet       = "debit_wallet_balance"
	StepDistributeShares  = "distribute_shares"
	StepNotifyInvestor    = "notify_investor"
)

// InvestmentSaga is the investment-creation workflow definition: a linear
// compensating saga whose only irreversible step is the payment charge,
// compensated by a refund.
type InvestmentSaga struct {
	persistence persistence.Persistence
	compliance  protocol.ComplianceChecker
	payments    protocol.PaymentProcessor
	notifier    protocol.NotificationService
	allocator   protocol.ShareAllocator
	logger      *slog.Logger
}

// NewInvestmentSaga creates the investment-creation workflow definition.
func NewInvestmentSaga(
	persist persistence.Persistence,
	compliance protocol.ComplianceChecker,
	payments protocol.PaymentProcessor,
	notifier protocol.NotificationService,
	allocator protocol.ShareAllocator,
	logger *slog.Logger,
) *InvestmentSaga {
	return &InvestmentSaga{
		persistence: persist,
		compliance:  compliance,
		payments:    payments,
		notifier:    notifier,
		allocator:   allocator,
		logger:      logger.With("module", "investment_saga"),
	}
}

func (s *InvestmentSaga) Type() models.WorkflowType {
	return models.WorkflowTypeInvestmentCreation
}

// Steps returns the seven saga steps. Compliance denial rejects the
// execution via the Check hook; a payment declined after that is a plain
// permanent failure with nothing to compensate, while failures in later
// steps trigger the refund compensation.
func (s *InvestmentSaga) Steps() []Step {
	return []Step{
		{
			Name:  StepVerifyCompliance,
			Run:   s.verifyCompliance,
			Check: checkComplianceApproved,
		},
		{
			Name:         StepProcessPayment,
			Irreversible: true,
			Run:          s.processPayment,
			Compensate:   s.refundPayment,
		},
		{
			Name: StepCreateInvestment,
			Run:  s.createInvestmentRecord,
		},
		{
			Name: StepRecordTransaction,
			Run:  s.recordLedgerTransaction,
		},
		{
			Name: StepDebitWallet,
			Run:  s.debitWalletBalance,
		},
		{
			Name: StepDistributeShares,
			Run:  s.distributeShares,
		},
		{
			Name: StepNotifyInvestor,
			Run:  s.notifyInvestorSuccess,
		},
	}
}

// OnFailure sends the failure-variant investor notification. Best-effort.
func (s *InvestmentSaga) OnFailure(ctx context.Context, run *Run, cause error) {
	input, err := investmentInput(run)
	if err != nil {
		s.logger.ErrorContext(ctx, "Cannot notify investor of failure", "error", err)

		return
	}

	err = s.notifier.Send(ctx, input.InvestorID, "investment.failed", map[string]any{
		"execution_id": run.Execution.ID,
		"property_id":  input.PropertyID,
		"amount":       input.Amount,
		"reason":       cause.Error(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failure notification not delivered",
			"execution_id", run.Execution.ID, "error", err)
	}
}

func (s *InvestmentSaga) verifyCompliance(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	result, err := s.compliance.Check(ctx, input.InvestorID, input.PropertyID, input.Amount)
	if err != nil {
		return nil, fmt.Errorf("compliance check failed: %w", err)
	}

	return json.Marshal(result)
}

func checkComplianceApproved(_ *Run, result json.RawMessage) error {
	var compliance protocol.ComplianceResult

	err := json.Unmarshal(result, &compliance)
	if err != nil {
		return fmt.Errorf("failed to decode compliance result: %w", err)
	}

	if !compliance.Approved {
		reason := compliance.Reason
		if reason == "" {
			reason = "compliance check denied"
		}

		return &RejectionError{Reason: reason}
	}

	return nil
}

func (s *InvestmentSaga) processPayment(ctx context.Context, run *Run, idempotencyKey string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	charge, err := s.payments.Charge(ctx, idempotencyKey, input.InvestorID, input.Amount, input.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("payment charge failed: %w", err)
	}

	if !charge.Success {
		return nil, fmt.Errorf("payment declined: %s", charge.Message)
	}

	return json.Marshal(charge)
}

func (s *InvestmentSaga) refundPayment(ctx context.Context, run *Run, idempotencyKey string) (json.RawMessage, error) {
	var charge protocol.ChargeResult

	err := run.Result(StepProcessPayment, &charge)
	if err != nil {
		return nil, err
	}

	err = s.payments.Refund(ctx, idempotencyKey, charge.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("refund of payment %s failed: %w", charge.PaymentID, err)
	}

	s.logger.InfoContext(ctx, "Payment refunded",
		"execution_id", run.Execution.ID, "payment_id", charge.PaymentID)

	return json.Marshal(map[string]any{"refunded": true, "payment_id": charge.PaymentID})
}

func (s *InvestmentSaga) createInvestmentRecord(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	var charge protocol.ChargeResult

	err = run.Result(StepProcessPayment, &charge)
	if err != nil {
		return nil, err
	}

	investment := &models.Investment{
		ID:               deterministicID(run.Execution.ID, "investment"),
		InvestorID:       input.InvestorID,
		PropertyID:       input.PropertyID,
		Amount:           input.Amount,
		PaymentReference: charge.PaymentID,
		Status:           models.InvestmentStatusActive,
	}

	err = s.persistence.Investments().Create(ctx, investment)
	if err != nil {
		return nil, fmt.Errorf("failed to create investment record: %w", err)
	}

	return json.Marshal(map[string]string{"investment_id": investment.ID})
}

func (s *InvestmentSaga) recordLedgerTransaction(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	var created struct {
		InvestmentID string `json:"investment_id"`
	}

	err = run.Result(StepCreateInvestment, &created)
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		ID:          deterministicID(run.Execution.ID, "transaction"),
		UserID:      input.InvestorID,
		Type:        models.TransactionTypeInvestment,
		Amount:      input.Amount,
		ReferenceID: created.InvestmentID,
	}

	err = s.persistence.Transactions().Create(ctx, transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	return json.Marshal(map[string]string{"transaction_id": transaction.ID})
}

func (s *InvestmentSaga) debitWalletBalance(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	var recorded struct {
		TransactionID string `json:"transaction_id"`
	}

	err = run.Result(StepRecordTransaction, &recorded)
	if err != nil {
		return nil, err
	}

	entry, err := s.persistence.Ledger().Append(ctx, input.InvestorID, -input.Amount, recorded.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	return json.Marshal(map[string]any{"entry_id": entry.ID, "balance_after": entry.BalanceAfter})
}

func (s *InvestmentSaga) distributeShares(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	var created struct {
		InvestmentID string `json:"investment_id"`
	}

	err = run.Result(StepCreateInvestment, &created)
	if err != nil {
		return nil, err
	}

	allocationRef, err := s.allocator.Allocate(ctx, input.InvestorID, input.PropertyID, input.Amount, created.InvestmentID)
	if err != nil {
		return nil, fmt.Errorf("share allocation failed: %w", err)
	}

	return json.Marshal(map[string]string{"allocation_ref": allocationRef})
}

func (s *InvestmentSaga) notifyInvestorSuccess(ctx context.Context, run *Run, _ string) (json.RawMessage, error) {
	input, err := investmentInput(run)
	if err != nil {
		return nil, err
	}

	err = s.notifier.Send(ctx, input.InvestorID, "investment.completed", map[string]any{
		"execution_id": run.Execution.ID,
		"property_id":  input.PropertyID,
		"amount":       input.Amount,
	})
	if err != nil {
		// Notification is best-effort and never fails the workflow.
		s.logger.WarnContext(ctx, "Success notification not delivered",
			"execution_id", run.Execution.ID, "error", err)

		return json.Marshal(map[string]bool{"delivered": false})
	}

	return json.Marshal(map[string]bool{"delivered": true})
}

func investmentInput(run *Run) (*models.InvestmentInput, error) {
	var input models.InvestmentInput

	err := json.Unmarshal(run.Execution.Input, &input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode investment input: %w", err)
	}

	return &input, nil
}

// deterministicID derives a stable UUID from the execution, so a retried
// create step writes the same row instead of a duplicate.
func deterministicID(executionID, entity string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(executionID+":"+entity)).String()
}
