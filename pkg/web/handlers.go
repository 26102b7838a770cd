package web

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/vestra-hq/vestra/pkg/models"
	"github.com/vestra-hq/vestra/pkg/services"
)

type APIHandlers struct {
	orchestrator *services.Orchestrator
}

func NewAPIHandlers(orchestrator *services.Orchestrator) *APIHandlers {
	return &APIHandlers{orchestrator: orchestrator}
}

// SubmitInvestment accepts an investment submission and returns its
// execution handle with 202. The workflow itself runs on a worker.
func (h *APIHandlers) SubmitInvestment(c fiber.Ctx) error {
	var input models.InvestmentInput
	if err := c.Bind().JSON(&input); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	executionID, err := h.orchestrator.SubmitInvestment(c.Context(), input)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitInvestmentResponse{ExecutionID: executionID})
}

// SubmitDistribution accepts a distribution submission and returns the batch
// handle with 202.
func (h *APIHandlers) SubmitDistribution(c fiber.Ctx) error {
	var req services.SubmitDistributionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	batchID, err := h.orchestrator.SubmitDistribution(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitDistributionResponse{BatchID: batchID})
}

// GetExecution returns the polled state of a workflow execution.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.orchestrator.GetExecution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

// GetDistribution returns a batch with its per-investor results.
func (h *APIHandlers) GetDistribution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Batch ID is required")
	}

	batch, err := h.orchestrator.GetBatch(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(batch)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	persistenceCheck, ok := h.orchestrator.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
		},
	})
}
