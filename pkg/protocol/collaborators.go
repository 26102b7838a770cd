// Package protocol defines the contracts of the external collaborators the
// orchestration core calls out to. Real implementations live outside this
// subsystem; in-repo there are only the sandbox suite for local development
// and the mocks used in tests.
package protocol

import "context"

// ComplianceResult is the outcome of a compliance check. Not approved is a
// rejection, not an error.
type ComplianceResult struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// ComplianceChecker validates that an investor may invest in a property.
type ComplianceChecker interface {
	Check(ctx context.Context, userID, propertyID string, amount int64) (*ComplianceResult, error)
}

// ChargeResult is the outcome of a payment charge.
type ChargeResult struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"payment_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PaymentProcessor charges and refunds payments. Implementations are
// contractually required to treat repeated calls with the same idempotency
// key as a no-op if the operation was already applied.
type PaymentProcessor interface {
	Charge(ctx context.Context, idempotencyKey, userID string, amount int64, method string) (*ChargeResult, error)
	Refund(ctx context.Context, idempotencyKey, paymentID string) error
}

// NotificationService delivers investor notifications. Best-effort: failures
// are logged by callers and never propagate as workflow failures.
type NotificationService interface {
	Send(ctx context.Context, userID, eventType string, payload map[string]any) error
}

// ShareAllocator grants ownership shares through the off-subsystem mechanism
// (token issuance or equivalent).
type ShareAllocator interface {
	Allocate(ctx context.Context, userID, propertyID string, amount int64, investmentID string) (string, error)
}
