package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/service"
	"github.com/admatrix/api/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// respondDomainError maps the engine's error taxonomy onto HTTP responses.
func respondDomainError(c *fiber.Ctx, err error) error {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return response.Error(c, fiber.StatusUnprocessableEntity, response.CodeValidationFailed,
			"Combinations failed validation", vErr.Issues)
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, model.ErrForbidden):
		return response.Forbidden(c, "You do not own this resource")
	case errors.Is(err, model.ErrCellLocked):
		return response.Conflict(c, response.CodeCellLocked, err.Error())
	case errors.Is(err, model.ErrEmptyCell):
		return response.Conflict(c, response.CodeEmptyCell, err.Error())
	case errors.Is(err, model.ErrInvalidState):
		return response.Conflict(c, response.CodeInvalidState, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}
