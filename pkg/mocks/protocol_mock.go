// Package mocks provides testify mocks for the protocol collaborator
// interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vestra-hq/vestra/pkg/protocol"
)

// MockComplianceChecker is a mock implementation of protocol.ComplianceChecker.
type MockComplianceChecker struct {
	mock.Mock
}

func (m *MockComplianceChecker) Check(ctx context.Context, userID, propertyID string, amount int64) (*protocol.ComplianceResult, error) {
	args := m.Called(ctx, userID, propertyID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.ComplianceResult), args.Error(1)
}

// MockPaymentProcessor is a mock implementation of protocol.PaymentProcessor.
type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) Charge(ctx context.Context, idempotencyKey, userID string, amount int64, method string) (*protocol.ChargeResult, error) {
	args := m.Called(ctx, idempotencyKey, userID, amount, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.ChargeResult), args.Error(1)
}

func (m *MockPaymentProcessor) Refund(ctx context.Context, idempotencyKey, paymentID string) error {
	args := m.Called(ctx, idempotencyKey, paymentID)

	return args.Error(0)
}

// MockNotificationService is a mock implementation of protocol.NotificationService.
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Send(ctx context.Context, userID, eventType string, payload map[string]any) error {
	args := m.Called(ctx, userID, eventType, payload)

	return args.Error(0)
}

// MockShareAllocator is a mock implementation of protocol.ShareAllocator.
type MockShareAllocator struct {
	mock.Mock
}

func (m *MockShareAllocator) Allocate(ctx context.Context, userID, propertyID string, amount int64, investmentID string) (string, error) {
	args := m.Called(ctx, userID, propertyID, amount, investmentID)

	return args.String(0), args.Error(1)
}
