package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow implements workflow lifecycle operations on top of the
// persistence layer.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence) *Workflow {
	return &Workflow{persistence: p}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

// List returns all workflows.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.WorkflowRepository().Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID returns a single workflow.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Create validates and persists a new workflow. The workflow starts inactive
// regardless of the requested status; activation is a separate step.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, &ServiceError{Op: "Create", Err: ErrWorkflowNil}
	}

	if err := validateGraph(workflow); err != nil {
		return nil, &ServiceError{Op: "Create", Err: err}
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusInactive
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.persistence.WorkflowRepository().SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces a workflow's definition. The graph of an active workflow
// is frozen; deactivate first to change nodes or edges.
func (w *Workflow) Update(ctx context.Context, id string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, &ServiceError{Op: "Update", Err: ErrWorkflowNil}
	}

	existing, err := w.persistence.WorkflowRepository().WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateGraph(workflow); err != nil {
		return nil, &ServiceError{Op: "Update", Err: err}
	}

	if existing.Status == models.WorkflowStatusActive && graphChanged(existing, workflow) {
		return nil, &ServiceError{Op: "Update", Err: ErrWorkflowActive}
	}

	workflow.ID = existing.ID
	workflow.Status = existing.Status
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Activate marks a workflow executable so its trigger instances may fire.
func (w *Workflow) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	return w.setStatus(ctx, id, models.WorkflowStatusActive)
}

// Deactivate disarms a workflow. Running executions are unaffected; new
// trigger fires are rejected at start time.
func (w *Workflow) Deactivate(ctx context.Context, id string) (*models.Workflow, error) {
	return w.setStatus(ctx, id, models.WorkflowStatusInactive)
}

func (w *Workflow) setStatus(ctx context.Context, id string, status models.WorkflowStatus) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status == status {
		return workflow, nil
	}

	workflow.Status = status
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.WorkflowRepository().SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow and its trigger instances. Deleting a missing
// workflow is a no-op.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	instances, err := w.persistence.TriggerInstanceRepository().TriggerInstances(ctx)
	if err != nil {
		return fmt.Errorf("failed to list trigger instances: %w", err)
	}

	for _, instance := range instances {
		if instance.WorkflowID != id {
			continue
		}

		if err := w.persistence.TriggerInstanceRepository().DeleteTriggerInstance(ctx, instance.ID); err != nil {
			return fmt.Errorf("failed to delete trigger instance %s: %w", instance.ID, err)
		}
	}

	if err := w.persistence.WorkflowRepository().DeleteWorkflow(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return nil
		}

		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// validateGraph checks the structural invariants the storage layer does not:
// a non-empty name, at least one enabled node, unique node and edge ids,
// edges between known nodes, and at least one root node to start from.
func validateGraph(workflow *models.Workflow) error {
	if workflow.Name == "" {
		return ErrWorkflowNameRequired
	}

	enabled := 0
	nodeIDs := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if nodeIDs[node.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}

		nodeIDs[node.ID] = true

		if node.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		return ErrNodesRequired
	}

	edgeIDs := make(map[string]bool, len(workflow.Edges))
	hasIncoming := make(map[string]bool)

	for _, edge := range workflow.Edges {
		if edgeIDs[edge.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateEdgeID, edge.ID)
		}

		edgeIDs[edge.ID] = true

		if !nodeIDs[edge.Source] {
			return fmt.Errorf("%w: edge %s source %s", ErrUnknownEdgeEndpoint, edge.ID, edge.Source)
		}

		if !nodeIDs[edge.Target] {
			return fmt.Errorf("%w: edge %s target %s", ErrUnknownEdgeEndpoint, edge.ID, edge.Target)
		}

		hasIncoming[edge.Target] = true
	}

	for _, node := range workflow.Nodes {
		if node.Enabled && !hasIncoming[node.ID] {
			return nil
		}
	}

	return ErrNoRootNode
}

// graphChanged reports whether the node or edge sets differ between two
// workflow definitions. Name, description, variables, and owner changes are
// always allowed.
func graphChanged(a, b *models.Workflow) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return true
	}

	for _, node := range b.Nodes {
		existing, ok := a.NodeByID(node.ID)
		if !ok || existing.ConnectorID != node.ConnectorID || existing.Enabled != node.Enabled {
			return true
		}
	}

	for _, edge := range b.Edges {
		existing, ok := a.EdgeByID(edge.ID)
		if !ok || existing.Source != edge.Source || existing.Target != edge.Target || existing.OnError != edge.OnError {
			return true
		}
	}

	return false
}
