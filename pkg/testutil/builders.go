// Package testutil provides test data builders shared across package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/tideflow-io/tideflow/pkg/models"
)

// CreateTestNode creates a WorkflowNode with default values that can be
// overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:          uuid.New().String(),
		ConnectorID: "log",
		Name:        "Test Node",
		Config:      map[string]any{"message": "test", "level": "info"},
		Enabled:     true,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithConnector sets the connector the node runs.
func WithConnector(connectorID string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ConnectorID = connectorID
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithAssignee sets the pause notification assignee.
func WithAssignee(assignee string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Assignee = assignee
	}
}

// WithEnabled sets the node enabled status.
func WithEnabled(enabled bool) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Enabled = enabled
	}
}

// CreateTestWorkflow creates an active workflow whose nodes form a straight
// line, with edges named e1..eN in node order.
func CreateTestWorkflow(nodes ...*models.WorkflowNode) *models.Workflow {
	if len(nodes) == 0 {
		nodes = []*models.WorkflowNode{CreateTestNode()}
	}

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Status:      models.WorkflowStatusActive,
		Owner:       "test-user",
		Variables:   map[string]any{"env": "test"},
		Nodes:       nodes,
	}

	for i := 1; i < len(nodes); i++ {
		workflow.Edges = append(workflow.Edges, &models.Edge{
			ID:     "e" + uuid.New().String()[:8],
			Source: nodes[i-1].ID,
			Target: nodes[i].ID,
		})
	}

	return workflow
}

// CreateTestTriggerInstance creates an active trigger instance with default
// values that can be overridden.
func CreateTestTriggerInstance(workflowID string, overrides ...func(*models.TriggerInstance)) *models.TriggerInstance {
	instance := &models.TriggerInstance{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Kind:       models.TriggerKindSchedule,
		Config: map[string]any{
			"freq":  "daily",
			"start": time.Now().UTC().Format(time.RFC3339),
		},
		Active:    true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(instance)
	}

	return instance
}

// WithKind sets the trigger kind and connector trigger id.
func WithKind(kind models.TriggerKind, connectorTriggerID string) func(*models.TriggerInstance) {
	return func(i *models.TriggerInstance) {
		i.Kind = kind
		i.ConnectorTriggerID = connectorTriggerID
	}
}

// WithTriggerConfig sets the trigger configuration.
func WithTriggerConfig(config map[string]any) func(*models.TriggerInstance) {
	return func(i *models.TriggerInstance) {
		i.Config = config
	}
}

// WithActive sets the trigger active flag.
func WithActive(active bool) func(*models.TriggerInstance) {
	return func(i *models.TriggerInstance) {
		i.Active = active
	}
}
