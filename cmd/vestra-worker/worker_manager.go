package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/log"
	"github.com/vestra-hq/vestra/pkg/otelhelper"
	"github.com/vestra-hq/vestra/pkg/workflow"
)

// WorkerManager consumes dispatch events and drives the workflow engine. The
// semaphore bounds in-flight executions; handlers block while the pool is
// full, so unacked messages provide the backpressure.
type WorkerManager struct {
	id        string
	logger    *slog.Logger
	engine    *workflow.Engine
	eventBus  eventbus.EventBus
	tracer    trace.Tracer
	semaphore chan struct{}
}

func NewWorkerManager(
	id string,
	engine *workflow.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	tracer trace.Tracer,
	concurrency int,
) *WorkerManager {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &WorkerManager{
		id:        id,
		logger:    logger.With("module", "vestra-worker", "worker_id", id),
		engine:    engine,
		eventBus:  eventBus,
		tracer:    tracer,
		semaphore: make(chan struct{}, concurrency),
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.DistributionRequestedEvent, w.handleDistributionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleExecutionRequested(ctx context.Context, event any) error {
	requestedEvent, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionRequested")

		return nil
	}

	logger := w.logger.With(
		"execution_id", requestedEvent.ExecutionID,
		"workflow_type", requestedEvent.WorkflowType,
		"event_id", requestedEvent.ID,
	)
	logger.InfoContext(ctx, "Processing execution requested event")

	return w.run(log.IntoContext(ctx, logger), requestedEvent.ExecutionID,
		attribute.String(otelhelper.ExecutionIDKey, requestedEvent.ExecutionID),
		attribute.String(otelhelper.WorkflowTypeKey, string(requestedEvent.WorkflowType)),
	)
}

func (w *WorkerManager) handleDistributionRequested(ctx context.Context, event any) error {
	requestedEvent, ok := event.(*events.DistributionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for DistributionRequested")

		return nil
	}

	logger := w.logger.With(
		"execution_id", requestedEvent.ExecutionID,
		"batch_id", requestedEvent.BatchID,
		"event_id", requestedEvent.ID,
	)
	logger.InfoContext(ctx, "Processing distribution requested event")

	return w.run(log.IntoContext(ctx, logger), requestedEvent.ExecutionID,
		attribute.String(otelhelper.ExecutionIDKey, requestedEvent.ExecutionID),
		attribute.String(otelhelper.BatchIDKey, requestedEvent.BatchID),
	)
}

// run drives one execution to a terminal status under the concurrency bound.
// Business failures end in a terminal status and return nil; only
// infrastructure errors propagate, which nacks the message for redelivery.
func (w *WorkerManager) run(ctx context.Context, executionID string, attrs ...attribute.KeyValue) error {
	w.semaphore <- struct{}{}
	defer func() { <-w.semaphore }()

	attrs = append(attrs, attribute.String(otelhelper.WorkerIDKey, w.id))

	spanCtx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.run_execution", attrs...)
	defer span.End()

	err := w.engine.Run(spanCtx, executionID)
	if err != nil {
		log.FromContext(ctx).ErrorContext(spanCtx, "Workflow execution failed", "error", err)
		otelhelper.SetError(span, err, attrs...)

		return err
	}

	return nil
}
