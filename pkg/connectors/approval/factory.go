package approval

import (
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates approval actions for the registry.
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
	return "approval"
}

// Schema returns the JSON schema for approval node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message shown to the assignee. Supports templating.",
				"default":     "approval required",
				"examples": []string{
					"Approve payout of {{.input.calculate.json.amount}}?",
				},
			},
			"assignee": map[string]any{
				"type":        "string",
				"description": "Who should be notified. Falls back to the node's assignee.",
			},
			"partial": map[string]any{
				"type":        "object",
				"description": "Output recorded before pausing, merged under the resume data.",
			},
		},
	}
}
