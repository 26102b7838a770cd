package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/vestra-hq/vestra/pkg/activity"
	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/mocks"
	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/persistence/file"
	"github.com/vestra-hq/vestra/pkg/protocol"
	"github.com/vestra-hq/vestra/pkg/workflow"
)

// Mock event bus for testing.
type MockEventBus struct {
	publishedEvents []eventbus.Event
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	return nil
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	m.publishedEvents = append(m.publishedEvents, event)

	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) GenerateID() string {
	return "mock-event-id"
}

type workerFixture struct {
	persist    persistence.Persistence
	manager    *WorkerManager
	compliance *mocks.MockComplianceChecker
	payments   *mocks.MockPaymentProcessor
	notifier   *mocks.MockNotificationService
	allocator  *mocks.MockShareAllocator
	eventBus   *MockEventBus
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)
	eventBus := &MockEventBus{}

	compliance := &mocks.MockComplianceChecker{}
	payments := &mocks.MockPaymentProcessor{}
	notifier := &mocks.MockNotificationService{}
	allocator := &mocks.MockShareAllocator{}

	executor := activity.NewExecutor(persist.Invocations(), nil, logger)
	engine := workflow.NewEngine(
		persist,
		executor,
		eventBus,
		logger,
		workflow.NewInvestmentSaga(persist, compliance, payments, notifier, allocator, logger),
		workflow.NewDistributionCoordinator(persist, executor, payments, notifier, eventBus, logger, 2),
	)

	manager := NewWorkerManager("test-worker", engine, eventBus, logger, otel.Tracer("test"), 2)

	return &workerFixture{
		persist:    persist,
		manager:    manager,
		compliance: compliance,
		payments:   payments,
		notifier:   notifier,
		allocator:  allocator,
		eventBus:   eventBus,
	}
}

func TestNewWorkerManager(t *testing.T) {
	f := newWorkerFixture(t)

	assert.NotNil(t, f.manager)
	assert.Equal(t, "test-worker", f.manager.id)
	assert.Equal(t, 2, cap(f.manager.semaphore))
	assert.NotNil(t, f.manager.logger)
}

func TestWorkerManager_HandleExecutionRequested_InvalidEvent(t *testing.T) {
	f := newWorkerFixture(t)

	err := f.manager.handleExecutionRequested(context.Background(), "invalid-event")
	require.NoError(t, err)
}

func TestWorkerManager_HandleDistributionRequested_InvalidEvent(t *testing.T) {
	f := newWorkerFixture(t)

	err := f.manager.handleDistributionRequested(context.Background(), "invalid-event")
	require.NoError(t, err)
}

func TestWorkerManager_HandleExecutionRequested_RunsSaga(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t)

	input, err := json.Marshal(models.InvestmentInput{
		InvestorID:    "user-1",
		PropertyID:    "prop-1",
		Amount:        5_000_000,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	execution := &models.WorkflowExecution{
		WorkflowType: models.WorkflowTypeInvestmentCreation,
		Input:        input,
		Status:       models.ExecutionStatusPending,
	}
	require.NoError(t, f.persist.Executions().Create(ctx, execution))

	f.compliance.On("Check", mock.Anything, "user-1", "prop-1", int64(5_000_000)).
		Return(&protocol.ComplianceResult{Approved: true}, nil)
	f.payments.On("Charge", mock.Anything, mock.Anything, "user-1", int64(5_000_000), "card").
		Return(&protocol.ChargeResult{Success: true, PaymentID: "pay-1"}, nil)
	f.allocator.On("Allocate", mock.Anything, "user-1", "prop-1", int64(5_000_000), mock.Anything).
		Return("alloc-1", nil)
	f.notifier.On("Send", mock.Anything, "user-1", "investment.completed", mock.Anything).
		Return(nil)

	requested := &events.ExecutionRequested{
		BaseEvent:    events.NewBaseEvent(events.ExecutionRequestedEvent, execution.ID),
		WorkflowType: models.WorkflowTypeInvestmentCreation,
	}

	err = f.manager.handleExecutionRequested(ctx, requested)
	require.NoError(t, err)

	reloaded, err := f.persist.Executions().GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, reloaded.Status)

	f.compliance.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.allocator.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	assert.NotEmpty(t, f.eventBus.publishedEvents)
}

func TestWorkerManager_HandleExecutionRequested_UnknownExecution(t *testing.T) {
	f := newWorkerFixture(t)

	requested := &events.ExecutionRequested{
		BaseEvent:    events.NewBaseEvent(events.ExecutionRequestedEvent, "missing"),
		WorkflowType: models.WorkflowTypeInvestmentCreation,
	}

	err := f.manager.handleExecutionRequested(context.Background(), requested)
	require.Error(t, err)
}
