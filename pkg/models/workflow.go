// Package models defines the core domain models for the tideflow trigger and
// execution continuation engine.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable, triggers armed
	WorkflowStatusInactive WorkflowStatus = "inactive" // Not executable, triggers disarmed
)

// Workflow is a directed graph of connector steps. Only the graph shape
// matters to the engine; per-step behavior lives behind the connector
// contract.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// WorkflowNode is one step definition inside a workflow graph.
type WorkflowNode struct {
	ID          string         `json:"id"           validate:"required"`
	ConnectorID string         `json:"connector_id" validate:"required"`
	Name        string         `json:"name"         validate:"required,min=1"`
	Config      map[string]any `json:"config"`
	// Assignee receives the pause notification when this node interrupts.
	Assignee string `json:"assignee,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Edge connects two nodes. Edge IDs double as path ids for decision nodes.
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	// OnError marks a continue-on-error edge: the target runs when the
	// source node fails instead of failing the whole execution.
	OnError bool `json:"on_error,omitempty"`
}

// NodeByID returns the node definition with the given id.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// OutgoingEdges returns all edges leaving the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var edges []*Edge

	for _, e := range w.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}

	return edges
}

// IncomingEdges returns all edges entering the given node.
func (w *Workflow) IncomingEdges(nodeID string) []*Edge {
	var edges []*Edge

	for _, e := range w.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}

	return edges
}

// EdgeByID returns the edge with the given id.
func (w *Workflow) EdgeByID(id string) (*Edge, bool) {
	for _, e := range w.Edges {
		if e.ID == id {
			return e, true
		}
	}

	return nil, false
}
