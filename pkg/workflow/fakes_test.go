package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/protocol"
)

type fakeCompliance struct {
	mu       sync.Mutex
	calls    int
	approved bool
	reason   string
	err      error
}

func (f *fakeCompliance) Check(_ context.Context, _, _ string, _ int64) (*protocol.ComplianceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	return &protocol.ComplianceResult{Approved: f.approved, Reason: f.reason}, nil
}

type fakePayments struct {
	mu             sync.Mutex
	chargeCalls    int
	refundCalls    int
	chargeKeys     []string
	refundedIDs    []string
	declineMessage string          // every charge declined when set
	declineUsers   map[string]bool // per-user declines
	chargeErr      error
	refundErr      error
}

func (f *fakePayments) Charge(_ context.Context, idempotencyKey, userID string, _ int64, _ string) (*protocol.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chargeCalls++
	f.chargeKeys = append(f.chargeKeys, idempotencyKey)

	if f.chargeErr != nil {
		return nil, f.chargeErr
	}

	if f.declineMessage != "" {
		return &protocol.ChargeResult{Success: false, Message: f.declineMessage}, nil
	}

	if f.declineUsers[userID] {
		return &protocol.ChargeResult{Success: false, Message: "payment method expired"}, nil
	}

	return &protocol.ChargeResult{Success: true, PaymentID: "pay-" + idempotencyKey}, nil
}

func (f *fakePayments) Refund(_ context.Context, _, paymentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refundCalls++
	f.refundedIDs = append(f.refundedIDs, paymentID)

	return f.refundErr
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (f *fakeNotifier) Send(_ context.Context, _, eventType string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, eventType)

	return f.err
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.events...)
}

type fakeAllocator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAllocator) Allocate(_ context.Context, _, _ string, _ int64, investmentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if f.err != nil {
		return "", f.err
	}

	return "alloc-" + investmentID, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)

	return nil
}

func (f *fakePublisher) published() []eventbus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]eventbus.Event(nil), f.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
