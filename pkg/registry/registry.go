// Package registry provides connector factory registration and lookup. The
// engine resolves every connector capability through this table; connectors
// are registered by id, never subclassed.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger                  *slog.Logger
	actionFactories         map[string]protocol.ActionFactory
	pollTriggerFactories    map[string]protocol.PollTriggerFactory
	webhookTriggerFactories map[string]protocol.WebhookTriggerFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:                  log,
		actionFactories:         make(map[string]protocol.ActionFactory),
		pollTriggerFactories:    make(map[string]protocol.PollTriggerFactory),
		webhookTriggerFactories: make(map[string]protocol.WebhookTriggerFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

func (r *Registry) RegisterPollTrigger(factory protocol.PollTriggerFactory) {
	r.pollTriggerFactories[factory.ID()] = factory
}

func (r *Registry) RegisterWebhookTrigger(factory protocol.WebhookTriggerFactory) {
	r.webhookTriggerFactories[factory.ID()] = factory
}

func (r *Registry) CreateAction(connectorID string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[connectorID]
	if !ok {
		return nil, fmt.Errorf("action connector '%s' not registered", connectorID)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for action connector '%s': %w", connectorID, err)
	}

	return factory.Create(config)
}

func (r *Registry) CreatePollTrigger(connectorID string, config map[string]any) (protocol.PollTrigger, error) {
	factory, ok := r.pollTriggerFactories[connectorID]
	if !ok {
		return nil, fmt.Errorf("poll trigger connector '%s' not registered", connectorID)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for poll trigger connector '%s': %w", connectorID, err)
	}

	return factory.Create(config, r.logger)
}

func (r *Registry) CreateWebhookTrigger(connectorID string, config map[string]any) (protocol.WebhookTrigger, error) {
	factory, ok := r.webhookTriggerFactories[connectorID]
	if !ok {
		return nil, fmt.Errorf("webhook trigger connector '%s' not registered", connectorID)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("invalid config for webhook trigger connector '%s': %w", connectorID, err)
	}

	return factory.Create(config, r.logger)
}

// ValidateTriggerConfig checks a trigger instance's config against its
// connector's declared schema without instantiating the connector. This is
// the activation-time gate: configuration errors never surface mid-run.
func (r *Registry) ValidateTriggerConfig(connectorID string, config map[string]any) error {
	var schema map[string]any

	if factory, ok := r.pollTriggerFactories[connectorID]; ok {
		schema = factory.Schema()
	} else if factory, ok := r.webhookTriggerFactories[connectorID]; ok {
		schema = factory.Schema()
	} else if factory, ok := r.actionFactories[connectorID]; ok {
		schema = factory.Schema()
	} else {
		return fmt.Errorf("connector '%s' not registered", connectorID)
	}

	return validateConfig(schema, config)
}

func validateConfig(schema, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("config does not match schema: %s", errs[0].String())
		}

		return fmt.Errorf("config does not match schema")
	}

	return nil
}
