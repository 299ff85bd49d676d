// Package web provides the HTTP surface of the gateway: workflow and trigger
// management, execution resume and cancellation, manual runs, and webhook
// ingress.
package web

import "github.com/tideflow-io/tideflow/pkg/models"

// ResumeExecutionRequest is the payload for resuming a paused execution.
// MergeData answers an input interrupt; ChosenPathIDs answers a path
// decision.
type ResumeExecutionRequest struct {
	NodeID        string         `json:"node_id" validate:"required"`
	MergeData     map[string]any `json:"merge_data,omitempty"`
	ChosenPathIDs []string       `json:"chosen_path_ids,omitempty"`
}

// RunWorkflowRequest starts an execution manually.
type RunWorkflowRequest struct {
	TriggerNodeID string         `json:"trigger_node_id,omitempty"`
	TriggerData   map[string]any `json:"trigger_data,omitempty"`
	DryRun        bool           `json:"dry_run,omitempty"`
}

// WorkflowRequest is the payload for creating or updating a workflow.
// Status and timestamps are managed server side.
type WorkflowRequest struct {
	Name        string                 `json:"name" validate:"required,min=3"`
	Description string                 `json:"description,omitempty"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Owner       string                 `json:"owner,omitempty"`
}

// TriggerInstanceRequest is the payload for creating or updating a trigger
// instance. Kind is ignored on update; it is immutable after creation.
type TriggerInstanceRequest struct {
	WorkflowID         string         `json:"workflow_id" validate:"required"`
	ConnectorTriggerID string         `json:"connector_trigger_id,omitempty"`
	Kind               string         `json:"kind,omitempty"`
	Config             map[string]any `json:"config,omitempty"`
	ConnectionRef      string         `json:"connection_ref,omitempty"`
}

// WebhookResponse acknowledges an inbound webhook. Delivery is acknowledged
// once routing finished; executions run asynchronously.
type WebhookResponse struct {
	Accepted   bool `json:"accepted"`
	Candidates int  `json:"candidates"`
	Fired      int  `json:"fired"`
}
