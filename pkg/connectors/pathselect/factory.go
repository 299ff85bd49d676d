package pathselect

import (
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates path_select actions for the registry.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.ActionFactory {
	return &Factory{}
}

// Create creates a new Action instance.
func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	return NewAction(config)
}

// ID returns the connector ID.
func (f *Factory) ID() string {
	return "path_select"
}

// Schema returns the JSON schema for path_select node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Prompt shown to the assignee. Supports templating.",
				"default":     "choose a path",
			},
			"assignee": map[string]any{
				"type":        "string",
				"description": "Who should be notified. Falls back to the node's assignee.",
			},
			"candidate_paths": map[string]any{
				"type":        "array",
				"description": "Edge ids offered for the decision. Defaults to the node's outgoing edges.",
				"items": map[string]any{
					"type": "string",
				},
			},
		},
	}
}
