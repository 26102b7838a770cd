// Package scheduler enqueues distribution batches when their distribution
// date arrives.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/events"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/services"
)

// Scheduler polls for pending batches whose distribution date has passed and
// publishes a dispatch event for each. Publishing the same batch twice is
// harmless: the driving execution is a no-op once it has left pending.
type Scheduler struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
	cron        *cron.Cron
}

// NewScheduler creates a distribution scheduler.
func NewScheduler(persist persistence.Persistence, eventBus eventbus.EventPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: persist,
		eventBus:    eventBus,
		logger:      logger.With("module", "scheduler"),
	}
}

// Start begins the minutely poll. It also runs one immediate tick so batches
// that became due while the scheduler was down are not delayed a minute.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc("* * * * *", func() {
		tickErr := s.Tick(ctx)
		if tickErr != nil {
			s.logger.ErrorContext(ctx, "Scheduler tick failed", "error", tickErr)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron entry: %w", err)
	}

	err = s.Tick(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Initial scheduler tick failed", "error", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Distribution scheduler started")

	return nil
}

// Stop halts the poll and waits for a running tick to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.InfoContext(ctx, "Distribution scheduler stopped")
}

// Tick enqueues every batch due at this moment.
func (s *Scheduler) Tick(ctx context.Context) error {
	batches, err := s.persistence.Distributions().ListDueBatches(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to list due batches: %w", err)
	}

	for _, batch := range batches {
		executionID := services.DistributionExecutionID(batch.ID)

		event := events.DistributionRequested{
			BaseEvent: events.NewBaseEvent(events.DistributionRequestedEvent, executionID),
			BatchID:   batch.ID,
		}

		err = s.eventBus.Publish(ctx, executionID, event)
		if err != nil {
			return fmt.Errorf("failed to enqueue batch %s: %w", batch.ID, err)
		}

		s.logger.InfoContext(ctx, "Due distribution enqueued",
			"batch_id", batch.ID, "distribution_date", batch.DistributionDate)
	}

	return nil
}
