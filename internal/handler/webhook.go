package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/admatrix/api/internal/client"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/service"
)

// WebhookHandler receives render provider callbacks. It always answers 200
// for well-formed bodies — unknown or stale provider job ids are discarded
// inside the service, never surfaced to the provider.
type WebhookHandler struct {
	service   *service.ExecutionService
	validator *validator.Validate
}

func NewWebhookHandler(svc *service.ExecutionService, v *validator.Validate) *WebhookHandler {
	return &WebhookHandler{
		service:   svc,
		validator: v,
	}
}

// Render handles POST /webhooks/render
// @Summary      Render provider callback
// @Tags         Webhook
// @Accept       json
// @Router       /webhooks/render [post]
func (h *WebhookHandler) Render(c *fiber.Ctx) error {
	var req model.ProviderWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := h.validator.Struct(&req); err != nil {
		return fiber.ErrBadRequest
	}

	h.service.ApplyProviderUpdate(c.Context(), model.StatusUpdate{
		ProviderJobID: req.ProviderJobID,
		Status:        client.MapProviderStatus(req.Status),
		OutputURL:     req.OutputURL,
		ErrorMessage:  req.Error,
	})

	return c.JSON(fiber.Map{"received": true})
}
