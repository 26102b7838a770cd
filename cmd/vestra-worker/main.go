package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vestra-hq/vestra/pkg/activity"
	"github.com/vestra-hq/vestra/pkg/cache"
	"github.com/vestra-hq/vestra/pkg/cmd"
	"github.com/vestra-hq/vestra/pkg/log"
	"github.com/vestra-hq/vestra/pkg/otelhelper"
	"github.com/vestra-hq/vestra/pkg/protocol/sandbox"
	"github.com/vestra-hq/vestra/pkg/workflow"
)

const defaultConcurrency = 8

func main() {
	command := &cli.Command{
		Name:                  "vestra-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to run investment and distribution workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the activity result cache (optional)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Maximum number of workflow executions run concurrently",
				Value:   defaultConcurrency,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("vestra-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Vestra Worker")

			var tracer trace.Tracer
			if command.Bool("tracing") {
				var err error

				tracer, err = otelhelper.NewTracer(ctx, "vestra-worker")
				if err != nil {
					return err
				}
			} else {
				tracer = otel.Tracer("vestra-worker")
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "vestra-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persist := cmd.NewPersistence(ctx, command.String("database-url"), logger)
			defer func() {
				err := persist.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var resultCache cache.Cache
			if addr := command.String("redis-url"); addr != "" {
				resultCache = cache.NewRedisCache(addr, "vestra-worker")
			}

			executor := activity.NewExecutor(persist.Invocations(), resultCache, logger)

			payments := sandbox.NewPaymentProcessor(logger)
			notifier := sandbox.NewNotificationService(logger)

			engine := workflow.NewEngine(
				persist,
				executor,
				eventBus,
				logger,
				workflow.NewInvestmentSaga(
					persist,
					sandbox.ComplianceChecker{},
					payments,
					notifier,
					sandbox.NewShareAllocator(logger),
					logger,
				),
				workflow.NewDistributionCoordinator(
					persist,
					executor,
					payments,
					notifier,
					eventBus,
					logger,
					command.Int("concurrency"),
				),
			)

			worker := NewWorkerManager(
				workerID,
				engine,
				eventBus,
				logger,
				tracer,
				command.Int("concurrency"),
			)

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
