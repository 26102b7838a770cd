// Package main provides the Vestra API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/vestra-hq/vestra/pkg/eventbus"
	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/services"
	"github.com/vestra-hq/vestra/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
	}
}

func (a *API) App() *fiber.App {
	orchestrator := services.NewOrchestrator(a.persistence, a.eventBus, a.logger)
	handlers := web.NewAPIHandlers(orchestrator)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Vestra Orchestration API")
	})

	app.Post("/investments", handlers.SubmitInvestment)
	app.Post("/distributions", handlers.SubmitDistribution)
	app.Get("/distributions/:id", handlers.GetDistribution)
	app.Get("/executions/:id", handlers.GetExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
