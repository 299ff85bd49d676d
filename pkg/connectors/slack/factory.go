package slack

import (
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates slack webhook triggers for the registry.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.WebhookTriggerFactory {
	return &Factory{}
}

// Create creates a new WebhookTrigger instance.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.WebhookTrigger, error) {
	return NewWebhookTrigger(config, logger)
}

// ID returns the connector ID.
func (f *Factory) ID() string {
	return "slack"
}

// Schema returns the JSON schema for slack webhook trigger configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"signing_secret": map[string]any{
				"type":        "string",
				"description": "Slack app signing secret used to verify request signatures",
			},
			"event_type": map[string]any{
				"type":        "string",
				"description": "Only fire for this classified event type",
				"examples":    []string{"message", "app_mention", "reaction_added"},
			},
			"connection_metadata": map[string]any{
				"type":        "object",
				"description": "Inline workspace metadata used when no connection is referenced",
				"properties": map[string]any{
					"team_id": map[string]any{
						"type":        "string",
						"description": "Workspace id the payload must belong to",
					},
				},
			},
		},
		"required": []string{"signing_secret"},
	}
}
