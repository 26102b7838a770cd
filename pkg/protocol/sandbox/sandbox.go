// Package sandbox provides collaborator implementations for local
// development: compliance always approves, charges always succeed, and
// notifications are written to the log. Production deployments wire real
// gateway adapters instead.
package sandbox

import (
	"context"
	"log/slog"

	"github.com/vestra-hq/vestra/pkg/protocol"
)

type ComplianceChecker struct{}

func (ComplianceChecker) Check(_ context.Context, _, _ string, _ int64) (*protocol.ComplianceResult, error) {
	return &protocol.ComplianceResult{Approved: true}, nil
}

// PaymentProcessor derives the payment id from the idempotency key so
// repeated charges for the same attempt return the same id.
type PaymentProcessor struct {
	logger *slog.Logger
}

func NewPaymentProcessor(logger *slog.Logger) *PaymentProcessor {
	return &PaymentProcessor{logger: logger.With("module", "sandbox_payments")}
}

func (p *PaymentProcessor) Charge(ctx context.Context, idempotencyKey, userID string, amount int64, method string) (*protocol.ChargeResult, error) {
	p.logger.InfoContext(ctx, "Sandbox charge", "user_id", userID, "amount", amount, "method", method)

	return &protocol.ChargeResult{Success: true, PaymentID: "sandbox-" + idempotencyKey}, nil
}

func (p *PaymentProcessor) Refund(ctx context.Context, _, paymentID string) error {
	p.logger.InfoContext(ctx, "Sandbox refund", "payment_id", paymentID)

	return nil
}

type NotificationService struct {
	logger *slog.Logger
}

func NewNotificationService(logger *slog.Logger) *NotificationService {
	return &NotificationService{logger: logger.With("module", "sandbox_notifications")}
}

func (n *NotificationService) Send(ctx context.Context, userID, eventType string, payload map[string]any) error {
	n.logger.InfoContext(ctx, "Sandbox notification", "user_id", userID, "event_type", eventType, "payload", payload)

	return nil
}

type ShareAllocator struct {
	logger *slog.Logger
}

func NewShareAllocator(logger *slog.Logger) *ShareAllocator {
	return &ShareAllocator{logger: logger.With("module", "sandbox_allocator")}
}

func (a *ShareAllocator) Allocate(ctx context.Context, userID, propertyID string, amount int64, investmentID string) (string, error) {
	a.logger.InfoContext(ctx, "Sandbox share allocation", "user_id", userID, "property_id", propertyID, "amount", amount)

	return "sandbox-alloc-" + investmentID, nil
}
