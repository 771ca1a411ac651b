package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/services"
)

// APIHandlers exposes the workflow service over HTTP.
type APIHandlers struct {
	workflowService *services.Workflow
	validator       *validator.Validate
}

func NewAPIHandlers(workflowService *services.Workflow, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		validator:       validate,
	}
}

// ApplyAction is the action ingress: it decodes, validates and applies one
// CarbonFlowAction against the workflow in the path.
func (h *APIHandlers) ApplyAction(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	action, err := models.DecodeAction(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateAction(action); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.workflowService.ApplyAction(c.Context(), workflowID, action)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ApplyActionResponse{
		WorkflowID: workflowID,
		Operation:  action.Operation(),
		Result:     result,
	})
}

// validateAction runs struct validation on the concrete action variant.
func (h *APIHandlers) validateAction(action models.Action) error {
	switch a := action.(type) {
	case models.AddAction:
		return h.validator.Struct(a)
	case models.UpdateAction:
		return h.validator.Struct(a)
	case models.DeleteAction:
		return h.validator.Struct(a)
	case models.ConnectAction:
		return h.validator.Struct(a)
	case models.LayoutAction:
		return h.validator.Struct(a)
	case models.CalculateAction:
		return h.validator.Struct(a)
	default:
		return nil
	}
}

// GetWorkflow returns the current graph for a workflow id.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	graph, err := h.workflowService.Graph(c.Context(), workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(GraphResponse{
		WorkflowID: graph.WorkflowID,
		Nodes:      graph.Nodes(),
		Edges:      graph.Edges(),
	})
}

// GetWorkflows lists the known workflow ids.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	ids, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(WorkflowListResponse{Workflows: ids, Count: len(ids)})
}

// GetFootprint recomputes and returns the aggregate footprint. The mode
// query parameter is explicit; omitted means strict.
func (h *APIHandlers) GetFootprint(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	mode := models.AggregationMode(c.Query("mode", string(models.AggregationStrict)))
	if mode != models.AggregationStrict && mode != models.AggregationLenient {
		return badRequest(c, "mode must be strict or lenient")
	}

	summary, err := h.workflowService.Footprint(c.Context(), workflowID, mode)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

// DeleteWorkflow removes a workflow's graph.
func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("id")
	if workflowID == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), workflowID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck reports graph store health and factor matcher reachability.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.workflowService.HealthCheck(c.Context())

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  map[bool]string{true: "healthy", false: "unhealthy"}[healthy],
		"message": message,
	})
}
