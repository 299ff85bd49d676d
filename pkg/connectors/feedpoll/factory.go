package feedpoll

import (
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates feed poll triggers for the registry.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.PollTriggerFactory {
	return &Factory{}
}

// Create creates a new PollTrigger instance.
func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.PollTrigger, error) {
	return NewPollTrigger(config, logger)
}

// ID returns the connector ID.
func (f *Factory) ID() string {
	return "feed_poll"
}

// Schema returns the JSON schema for feed poll trigger configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Feed endpoint returning a JSON array or an object with an 'items' array",
			},
			"timestamp_field": map[string]any{
				"type":        "string",
				"description": "Event field carrying the timestamp in milliseconds",
				"default":     "timestamp",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Extra request headers, for example an Authorization token",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"poll_interval_seconds": map[string]any{
				"type":        "number",
				"description": "Seconds between polls",
				"default":     300,
				"minimum":     1,
			},
		},
		"required": []string{"url"},
	}
}
