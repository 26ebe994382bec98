// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/shopflow/pkg/eventbus"
	"github.com/dukex/shopflow/pkg/models"
	"github.com/dukex/shopflow/pkg/registry"
	"github.com/dukex/shopflow/pkg/services"
)

// RequiredEvents reports the async events the enabled workflows need.
type RequiredEvents interface {
	RequiredEvents(ctx context.Context) ([]string, error)
	Initialized() []string
}

type APIHandlers struct {
	workflowService *services.Workflow
	queueService    *services.Queue
	logService      *services.Logs
	validator       *validator.Validate
	registry        *registry.Registry
	events          RequiredEvents
	publisher       eventbus.Publisher
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	queueService *services.Queue,
	logService *services.Logs,
	validator *validator.Validate,
	registry *registry.Registry,
	events RequiredEvents,
	publisher eventbus.Publisher,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		queueService:    queueService,
		logService:      logService,
		validator:       validator,
		registry:        registry,
		events:          events,
		publisher:       publisher,
	}
}

// Register mounts every endpoint on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/enable", h.EnableWorkflow)
	w.Post("/:id/disable", h.DisableWorkflow)
	w.Post("/:id/run", h.RunWorkflow)

	q := router.Group("/queue")
	q.Get("/", h.GetQueuedEvents)
	q.Get("/:id", h.GetQueuedEvent)
	q.Delete("/:id", h.DeleteQueuedEvent)
	q.Post("/:id/retry", h.RetryQueuedEvent)

	l := router.Group("/logs")
	l.Get("/", h.GetLogs)
	l.Get("/:id", h.GetLog)
	l.Post("/:id/open", h.TrackOpen)
	l.Post("/:id/click", h.TrackClick)

	router.Get("/catalog/triggers", h.GetTriggers)
	router.Get("/catalog/rules", h.GetRules)
	router.Get("/catalog/actions", h.GetActions)

	router.Get("/events/required", h.GetRequiredEvents)
	router.Post("/events/:topic", h.PublishEvent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Shopflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Shopflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	limit, offset, err := parsePagination(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	req := services.ListWorkflowsRequest{
		Limit:   limit,
		Offset:  offset,
		Trigger: c.Query("trigger"),
		Status:  models.WorkflowStatus(c.Query("status")),
		Type:    models.WorkflowType(c.Query("type")),
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

// parsePagination reads the optional limit and offset query parameters.
func parsePagination(c fiber.Ctx) (int, int, error) {
	var limit, offset int

	if limitStr := c.Query("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}

		limit = n
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}

		offset = n
	}

	return limit, offset, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.Workflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	// Get existing workflow and merge changes
	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	req.Apply(existing)

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	return h.setStatus(c, models.WorkflowStatusActive)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	return h.setStatus(c, models.WorkflowStatusDisabled)
}

func (h *APIHandlers) setStatus(c fiber.Ctx, status models.WorkflowStatus) error {
	workflow, err := h.workflowService.SetStatus(c.Context(), c.Params("id"), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// RunWorkflow runs a manual workflow for each requested id. Ids whose data
// does not match the rules produce no log.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	logs, err := h.workflowService.Run(c.Context(), c.Params("id"), req.IDs)
	if err != nil {
		return handleServiceError(c, err)
	}

	if logs == nil {
		logs = []*models.Log{}
	}

	return c.JSON(fiber.Map{"logs": logs})
}
