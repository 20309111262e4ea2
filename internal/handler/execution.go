package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/admatrix/api/internal/middleware"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/service"
	"github.com/admatrix/api/pkg/response"
)

type ExecutionHandler struct {
	service   *service.ExecutionService
	validator *validator.Validate
}

func NewExecutionHandler(svc *service.ExecutionService, v *validator.Validate) *ExecutionHandler {
	return &ExecutionHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/matrices/:matrixId/execute
// @Summary      Start execution
// @Description  Create one render job per combination and submit them
// @Tags         Execution
// @Accept       json
// @Produce      json
// @Router       /api/matrices/{matrixId}/execute [post]
func (h *ExecutionHandler) Start(c *fiber.Ctx) error {
	var req model.StartExecutionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartExecution(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), &req)
	if err != nil {
		return respondDomainError(c, err)
	}
	if result.Existing {
		return response.OK(c, result)
	}
	return response.Accepted(c, result)
}

// GenerationStatus handles GET /api/generations/:generationId
// @Summary      Generation status
// @Description  Current job of every variation slot
// @Tags         Execution
// @Produce      json
// @Router       /api/generations/{generationId} [get]
func (h *ExecutionHandler) GenerationStatus(c *fiber.Ctx) error {
	result, err := h.service.GenerationStatus(c.Context(), middleware.GetUserID(c), c.Params("generationId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, result)
}

// Retry handles POST /api/jobs/:jobId/retry
// @Summary      Retry failed job
// @Description  Create a fresh job for the same variation slot
// @Tags         Execution
// @Produce      json
// @Router       /api/jobs/{jobId}/retry [post]
func (h *ExecutionHandler) Retry(c *fiber.Ctx) error {
	job, err := h.service.Retry(c.Context(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.Accepted(c, model.RetryJobResponse{
		JobID:        job.ID,
		GenerationID: job.GenerationID,
		Variation:    job.VariationIndex,
		Status:       job.Status,
	})
}

// Cancel handles POST /api/jobs/:jobId/cancel
// @Summary      Cancel job
// @Description  Fail a pending or processing job; provider abort is best effort
// @Tags         Execution
// @Produce      json
// @Router       /api/jobs/{jobId}/cancel [post]
func (h *ExecutionHandler) Cancel(c *fiber.Ctx) error {
	job, err := h.service.Cancel(c.Context(), middleware.GetUserID(c), c.Params("jobId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, job)
}
