package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/admatrix/api/internal/middleware"
	"github.com/admatrix/api/internal/model"
	"github.com/admatrix/api/internal/service"
	"github.com/admatrix/api/pkg/response"
)

type MatrixHandler struct {
	service   *service.MatrixService
	validator *validator.Validate
}

func NewMatrixHandler(svc *service.MatrixService, v *validator.Validate) *MatrixHandler {
	return &MatrixHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/matrices
// @Summary      Create matrix
// @Description  Open a new empty campaign matrix
// @Tags         Matrix
// @Accept       json
// @Produce      json
// @Router       /api/matrices [post]
func (h *MatrixHandler) Create(c *fiber.Ctx) error {
	var req model.CreateMatrixRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	m, err := h.service.Create(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.Created(c, m)
}

// Get handles GET /api/matrices/:matrixId
// @Summary      Get matrix
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId} [get]
func (h *MatrixHandler) Get(c *fiber.Ctx) error {
	m, err := h.service.Get(c.Context(), middleware.GetUserID(c), c.Params("matrixId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// Delete handles DELETE /api/matrices/:matrixId
// @Summary      Delete matrix
// @Tags         Matrix
// @Router       /api/matrices/{matrixId} [delete]
func (h *MatrixHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), middleware.GetUserID(c), c.Params("matrixId")); err != nil {
		return respondDomainError(c, err)
	}
	return response.NoContent(c)
}

// AddRow handles POST /api/matrices/:matrixId/rows
// @Summary      Add row
// @Description  Append a platform/format row with empty cells
// @Tags         Matrix
// @Accept       json
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows [post]
func (h *MatrixHandler) AddRow(c *fiber.Ctx) error {
	var req model.AddRowRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	row, err := h.service.AddRow(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), &req)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.Created(c, row)
}

// RemoveRow handles DELETE /api/matrices/:matrixId/rows/:rowId
// @Summary      Remove row
// @Tags         Matrix
// @Router       /api/matrices/{matrixId}/rows/{rowId} [delete]
func (h *MatrixHandler) RemoveRow(c *fiber.Ctx) error {
	err := h.service.RemoveRow(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.NoContent(c)
}

// DuplicateRow handles POST /api/matrices/:matrixId/rows/:rowId/duplicate
// @Summary      Duplicate row
// @Description  Deep-copy a row's assignments, locks included
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows/{rowId}/duplicate [post]
func (h *MatrixHandler) DuplicateRow(c *fiber.Ctx) error {
	row, err := h.service.DuplicateRow(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.Created(c, row)
}

// AssignAsset handles PUT /api/matrices/:matrixId/rows/:rowId/cells/:assetType
// @Summary      Assign asset to cell
// @Tags         Matrix
// @Accept       json
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows/{rowId}/cells/{assetType} [put]
func (h *MatrixHandler) AssignAsset(c *fiber.Ctx) error {
	var req model.AssignAssetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	assetType := model.AssetType(c.Params("assetType"))
	if !model.IsValidAssetType(assetType) {
		return response.ValidationError(c, "Unknown asset type", nil)
	}
	if req.Asset.Type != assetType {
		return response.ValidationError(c, "Asset type does not match cell column", nil)
	}

	m, err := h.service.AssignAsset(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"), assetType, req.Asset)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// RemoveAsset handles DELETE /api/matrices/:matrixId/rows/:rowId/cells/:assetType
// @Summary      Clear cell
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows/{rowId}/cells/{assetType} [delete]
func (h *MatrixHandler) RemoveAsset(c *fiber.Ctx) error {
	assetType := model.AssetType(c.Params("assetType"))
	if !model.IsValidAssetType(assetType) {
		return response.ValidationError(c, "Unknown asset type", nil)
	}
	m, err := h.service.RemoveAsset(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"), assetType)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// Lock handles POST /api/matrices/:matrixId/rows/:rowId/cells/:assetType/lock
// @Summary      Lock cell
// @Description  Pin a cell so auto-fill cannot change it
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows/{rowId}/cells/{assetType}/lock [post]
func (h *MatrixHandler) Lock(c *fiber.Ctx) error {
	assetType := model.AssetType(c.Params("assetType"))
	if !model.IsValidAssetType(assetType) {
		return response.ValidationError(c, "Unknown asset type", nil)
	}
	m, err := h.service.Lock(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"), assetType)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// Unlock handles POST /api/matrices/:matrixId/rows/:rowId/cells/:assetType/unlock
// @Summary      Unlock cell
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId}/rows/{rowId}/cells/{assetType}/unlock [post]
func (h *MatrixHandler) Unlock(c *fiber.Ctx) error {
	assetType := model.AssetType(c.Params("assetType"))
	if !model.IsValidAssetType(assetType) {
		return response.ValidationError(c, "Unknown asset type", nil)
	}
	m, err := h.service.Unlock(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), c.Params("rowId"), assetType)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// AutoFill handles POST /api/matrices/:matrixId/autofill
// @Summary      Auto-fill matrix
// @Description  Fill every unlocked cell from the asset catalog
// @Tags         Matrix
// @Accept       json
// @Produce      json
// @Router       /api/matrices/{matrixId}/autofill [post]
func (h *MatrixHandler) AutoFill(c *fiber.Ctx) error {
	var req model.AutoFillRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	m, err := h.service.AutoFill(c.Context(), middleware.GetUserID(c), c.Params("matrixId"), &req)
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, m)
}

// Combinations handles GET /api/matrices/:matrixId/combinations
// @Summary      Preview combinations
// @Description  Expand the matrix and report validation issues
// @Tags         Matrix
// @Produce      json
// @Router       /api/matrices/{matrixId}/combinations [get]
func (h *MatrixHandler) Combinations(c *fiber.Ctx) error {
	result, err := h.service.Combinations(c.Context(), middleware.GetUserID(c), c.Params("matrixId"))
	if err != nil {
		return respondDomainError(c, err)
	}
	return response.OK(c, result)
}
