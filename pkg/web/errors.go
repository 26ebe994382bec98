package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/shopflow/pkg/entities"
	"github.com/dukex/shopflow/pkg/persistence"
	"github.com/dukex/shopflow/pkg/services"
	"github.com/dukex/shopflow/pkg/workflow"
)

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusNotFound, "not_found", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), errors.Is(err, workflow.ErrInvalidTiming):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case persistence.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case persistence.IsQueuedEventNotFound(err):
		return problem(c, fiber.StatusNotFound, "queued_event_not_found", "queued event not found")

	case persistence.IsLogNotFound(err):
		return problem(c, fiber.StatusNotFound, "log_not_found", "log not found")

	case errors.Is(err, entities.ErrNotFound):
		return problem(c, fiber.StatusNotFound, "entity_not_found", err.Error())

	case errors.Is(err, entities.ErrInvalid):
		return problem(c, fiber.StatusUnprocessableEntity, "entity_invalid", err.Error())

	default:
		return internalError(c, err)
	}
}
