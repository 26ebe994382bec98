package web

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/dukex/shopflow/pkg/services"
)

// GetQueuedEvents lists queued events. failed=true narrows the list to the
// events that did not run.
func (h *APIHandlers) GetQueuedEvents(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	req := services.ListQueueRequest{
		WorkflowID: c.Query("workflow_id"),
		Limit:      limit,
		Offset:     offset,
	}

	if failedStr := c.Query("failed"); failedStr != "" {
		failed, err := strconv.ParseBool(failedStr)
		if err != nil {
			return badRequest(c, "Invalid query parameters: "+err.Error())
		}

		req.Failed = &failed
	}

	events, err := h.queueService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]QueuedEventResponse, 0, len(events))
	for _, event := range events {
		response = append(response, TransformQueuedEvent(event))
	}

	return c.JSON(fiber.Map{"queued_events": response})
}

func (h *APIHandlers) GetQueuedEvent(c fiber.Ctx) error {
	event, err := h.queueService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformQueuedEvent(event))
}

func (h *APIHandlers) DeleteQueuedEvent(c fiber.Ctx) error {
	err := h.queueService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RetryQueuedEvent(c fiber.Ctx) error {
	event, err := h.queueService.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformQueuedEvent(event))
}
