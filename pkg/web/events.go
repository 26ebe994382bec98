package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/dukex/shopflow/pkg/eventbus"
)

// GetRequiredEvents lists the async events enabled workflows need and the
// ones this process has already initialized.
func (h *APIHandlers) GetRequiredEvents(c fiber.Ctx) error {
	required, err := h.events.RequiredEvents(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if required == nil {
		required = []string{}
	}

	return c.JSON(fiber.Map{
		"required":    required,
		"initialized": h.events.Initialized(),
	})
}

// PublishEvent ingests a raw shop event. Derived topics are published by
// async events only.
func (h *APIHandlers) PublishEvent(c fiber.Ctx) error {
	topic := eventbus.Topic(c.Params("topic"))

	event, err := eventbus.NewPayload(topic)
	if errors.Is(err, eventbus.ErrUnknownTopic) {
		return notFound(c, "Unknown topic "+string(topic))
	}

	if err != nil {
		return internalError(c, err)
	}

	if !topic.Raw() {
		return badRequest(c, "Topic "+string(topic)+" is published by the engine")
	}

	if err := c.Bind().JSON(event); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(event); err != nil {
		return badRequest(c, err.Error())
	}

	err = h.publisher.Publish(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
