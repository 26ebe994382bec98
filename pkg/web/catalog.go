package web

import (
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetTriggers(c fiber.Ctx) error {
	list := h.registry.Triggers()

	response := make([]TriggerResponse, 0, len(list))
	for _, t := range list {
		response = append(response, TransformTrigger(t))
	}

	return c.JSON(fiber.Map{"triggers": response})
}

func (h *APIHandlers) GetRules(c fiber.Ctx) error {
	list := h.registry.Rules()

	response := make([]RuleResponse, 0, len(list))
	for _, r := range list {
		response = append(response, TransformRule(r))
	}

	return c.JSON(fiber.Map{"rules": response})
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	list := h.registry.Actions()

	response := make([]ActionResponse, 0, len(list))
	for _, a := range list {
		response = append(response, TransformAction(a))
	}

	return c.JSON(fiber.Map{"actions": response})
}
