package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/tideflow-io/tideflow/pkg/engine"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/router"
	"github.com/tideflow-io/tideflow/pkg/services"
)

type APIHandlers struct {
	engine      *engine.Engine
	router      *router.Router
	persistence persistence.Persistence
	workflows   *services.Workflow
	triggers    *services.TriggerInstances
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	webhookRouter *router.Router,
	p persistence.Persistence,
	reg services.ConfigValidator,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		router:      webhookRouter,
		persistence: p,
		workflows:   services.NewWorkflow(p),
		triggers:    services.NewTriggerInstances(p, reg),
		validator:   validate,
	}
}

// Register mounts all routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	workflows := app.Group("/workflows")
	workflows.Get("/", h.ListWorkflows)
	workflows.Post("/", h.CreateWorkflow)
	workflows.Get("/:id", h.GetWorkflow)
	workflows.Put("/:id", h.UpdateWorkflow)
	workflows.Delete("/:id", h.DeleteWorkflow)
	workflows.Post("/:id/activate", h.ActivateWorkflow)
	workflows.Post("/:id/deactivate", h.DeactivateWorkflow)
	workflows.Post("/:id/run", h.RunWorkflow)
	workflows.Get("/:id/executions", h.ListExecutions)

	triggers := app.Group("/triggers")
	triggers.Get("/", h.ListTriggerInstances)
	triggers.Post("/", h.CreateTriggerInstance)
	triggers.Get("/:id", h.GetTriggerInstance)
	triggers.Put("/:id", h.UpdateTriggerInstance)
	triggers.Delete("/:id", h.DeleteTriggerInstance)
	triggers.Post("/:id/activate", h.ActivateTriggerInstance)
	triggers.Post("/:id/deactivate", h.DeactivateTriggerInstance)

	executions := app.Group("/executions")
	executions.Get("/:id", h.GetExecution)
	executions.Post("/:id/resume", h.ResumeExecution)
	executions.Post("/:id/cancel", h.CancelExecution)

	app.Post("/webhooks/:connectorId", h.ReceiveWebhook)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().WorkflowByID(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(workflow)
}

// RunWorkflow starts an execution synchronously and returns its final (or
// paused) state.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RunWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	var opts []engine.StartOption
	if req.DryRun {
		opts = append(opts, engine.DryRun())
	}

	execution, err := h.engine.Start(c.Context(), id, req.TriggerNodeID, req.TriggerData, opts...)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	executions, err := h.persistence.ExecutionRepository().ExecutionsByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"executions": executions})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.engine.Execution(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

// ResumeExecution applies a resume payload to a paused node. Conflicting
// resumes (the node already consumed its input) come back as 409 so clients
// can distinguish replays from bad payloads.
func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.Resume(c.Context(), models.ResumeRequest{
		ExecutionID:   id,
		NodeID:        req.NodeID,
		MergeData:     req.MergeData,
		ChosenPathIDs: req.ChosenPathIDs,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.engine.Cancel(c.Context(), id); err != nil {
		return handleEngineError(c, err)
	}

	execution, err := h.engine.Execution(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(execution)
}

// ReceiveWebhook is the shared ingress for all webhook connectors. The
// payload is routed to every matching trigger instance; an unverifiable
// payload is rejected with 401 and fires nothing.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	connectorID := c.Params("connectorId")
	if connectorID == "" {
		return badRequest(c, "Connector ID is required")
	}

	headers := make(map[string]string)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	result, err := h.router.Route(c.Context(), connectorID, c.Body(), headers)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(WebhookResponse{
		Accepted:   true,
		Candidates: result.Candidates,
		Fired:      result.Fired,
	})
}
