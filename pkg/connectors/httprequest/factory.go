package httprequest

import (
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Factory creates http_request actions for the registry.
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
	return "http_request"
}

// Schema returns the JSON schema for http_request node configuration.
func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to request. Supports templating against upstream outputs.",
				"examples": []string{
					"https://api.example.com/users/{{.input.lookup.json.user_id}}",
					"https://hooks.example.com/{{.config.channel}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
				"default":     "GET",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers. Values support templating.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body. Supports templating; JSON-shaped results are re-encoded.",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Per-request timeout in seconds",
				"default":     30,
				"minimum":     1,
				"maximum":     300,
			},
			"retries": map[string]any{
				"type":        "object",
				"description": "Retry behavior for network and 5xx failures",
				"properties": map[string]any{
					"attempts": map[string]any{
						"type":    "number",
						"default": 1,
						"minimum": 1,
						"maximum": 10,
					},
					"delay": map[string]any{
						"type":        "number",
						"description": "Delay between attempts in milliseconds",
						"default":     0,
						"minimum":     0,
					},
				},
			},
		},
		"required": []string{"url"},
	}
}
