package logmsg

import (
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates log actions for the registry.
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
	return "log"
}

// Schema returns the JSON schema for log node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Supports templating against upstream outputs.",
				"examples": []string{
					"Fetched {{.input.fetch.json.total}} records",
					"Execution {{.execution.id}} reached {{.execution.node_id}}",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"debug", "info", "warn", "error"},
				"default":     "info",
			},
		},
		"required": []string{"message"},
	}
}
