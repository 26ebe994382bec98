package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/services"
)

func (h *APIHandlers) GetLogs(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	logs, err := h.logService.List(c.Context(), services.ListLogsRequest{
		WorkflowID: c.Query("workflow_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if logs == nil {
		logs = []*models.Log{}
	}

	return c.JSON(fiber.Map{"logs": logs})
}

func (h *APIHandlers) GetLog(c fiber.Ctx) error {
	log, err := h.logService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(log)
}

// TrackOpen is hit by the tracking pixel of a sent email.
func (h *APIHandlers) TrackOpen(c fiber.Ctx) error {
	log, err := h.logService.TrackOpen(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(log)
}

func (h *APIHandlers) TrackClick(c fiber.Ctx) error {
	log, err := h.logService.TrackClick(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(log)
}
