// Package router fans inbound webhook payloads out to the trigger instances
// they belong to: verify the signature, classify the event, match the tenant,
// then fire.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/registry"
)

// ErrVerificationFailed rejects a payload whose signature no candidate
// instance accepted. Unauthenticated payloads never reach classification.
var ErrVerificationFailed = errors.New("webhook signature verification failed")

// FireFunc delivers one matched webhook to downstream processing, typically
// by publishing a trigger-fired event or starting an execution directly.
type FireFunc func(ctx context.Context, instance *models.TriggerInstance, data map[string]any) error

// Result summarizes one routed payload.
type Result struct {
	Candidates int
	Fired      int
}

// Router routes raw webhook bodies to matching trigger instances.
type Router struct {
	triggers    persistence.TriggerInstanceRepository
	connections ConnectionResolver
	registry    *registry.Registry
	fire        FireFunc
	logger      *slog.Logger
}

// ConnectionResolver resolves a trigger instance's connection reference to
// the tenant metadata used for identifier matching.
type ConnectionResolver interface {
	Resolve(ctx context.Context, ref string) (*models.Connection, error)
}

func NewRouter(
	triggers persistence.TriggerInstanceRepository,
	reg *registry.Registry,
	fire FireFunc,
	logger *slog.Logger,
) *Router {
	return &Router{
		triggers: triggers,
		registry: reg,
		fire:     fire,
		logger:   logger.With("module", "router"),
	}
}

// WithConnectionResolver attaches a resolver for per-tenant matching. Without
// one, matching falls back to the metadata embedded in the instance config.
func (r *Router) WithConnectionResolver(resolver ConnectionResolver) *Router {
	r.connections = resolver

	return r
}

// Route processes one inbound payload for a connector trigger. It walks every
// active webhook instance bound to the connector and fires the ones whose
// configuration verifies, classifies and matches the payload. A payload no
// instance could authenticate fails with ErrVerificationFailed and fires
// nothing.
func (r *Router) Route(
	ctx context.Context,
	connectorTriggerID string,
	body []byte,
	headers map[string]string,
) (*Result, error) {
	instances, err := r.triggers.ActiveWebhooksByConnector(ctx, connectorTriggerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook instances for %s: %w", connectorTriggerID, err)
	}

	result := &Result{Candidates: len(instances)}
	if len(instances) == 0 {
		r.logger.DebugContext(ctx, "No active webhook instances for connector",
			"connector_trigger_id", connectorTriggerID)

		return result, nil
	}

	verified := 0

	for _, instance := range instances {
		fired, ok, err := r.routeInstance(ctx, instance, body, headers)
		if err != nil {
			// One broken instance must not block the rest of the tenant
			// fan-out.
			r.logger.ErrorContext(ctx, "Failed to route webhook to instance",
				"trigger_instance_id", instance.ID, "error", err)

			continue
		}

		if ok {
			verified++
		}

		if fired {
			result.Fired++
		}
	}

	if verified == 0 {
		return result, fmt.Errorf("connector %s: %w", connectorTriggerID, ErrVerificationFailed)
	}

	return result, nil
}

// routeInstance runs the verify/classify/match pipeline for one instance.
// The first return reports whether the instance fired, the second whether the
// signature verified.
func (r *Router) routeInstance(
	ctx context.Context,
	instance *models.TriggerInstance,
	body []byte,
	headers map[string]string,
) (bool, bool, error) {
	trigger, err := r.registry.CreateWebhookTrigger(instance.ConnectorTriggerID, instance.Config)
	if err != nil {
		return false, false, fmt.Errorf("failed to create webhook trigger: %w", err)
	}

	if !trigger.Verify(body, headers) {
		r.logger.WarnContext(ctx, "Webhook signature rejected",
			"trigger_instance_id", instance.ID,
			"connector_trigger_id", instance.ConnectorTriggerID)

		return false, false, nil
	}

	eventType, err := trigger.Classify(body)
	if err != nil {
		return false, true, fmt.Errorf("failed to classify payload: %w", err)
	}

	if want := configuredEventType(instance); want != "" && want != eventType {
		return false, true, nil
	}

	metadata, err := r.connectionMetadata(ctx, instance)
	if err != nil {
		return false, true, err
	}

	if !trigger.MatchesIdentifier(body, metadata) {
		return false, true, nil
	}

	if !matchesFilter(instance, body) {
		return false, true, nil
	}

	data := map[string]any{
		"event_type": eventType,
		"body":       string(body),
		"headers":    headers,
	}

	if err := r.fire(ctx, instance, data); err != nil {
		return false, true, fmt.Errorf("failed to fire trigger: %w", err)
	}

	r.logger.InfoContext(ctx, "Webhook fired",
		"trigger_instance_id", instance.ID,
		"workflow_id", instance.WorkflowID,
		"event_type", eventType)

	return true, true, nil
}

func (r *Router) connectionMetadata(ctx context.Context, instance *models.TriggerInstance) (map[string]any, error) {
	if r.connections != nil && instance.ConnectionRef != "" {
		connection, err := r.connections.Resolve(ctx, instance.ConnectionRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve connection %s: %w", instance.ConnectionRef, err)
		}

		return connection.Metadata, nil
	}

	if metadata, ok := instance.Config["connection_metadata"].(map[string]any); ok {
		return metadata, nil
	}

	return nil, nil
}

func configuredEventType(instance *models.TriggerInstance) string {
	eventType, _ := instance.Config["event_type"].(string)

	return eventType
}

// matchesFilter applies the instance's user-configured equality predicates.
// Every filter key must appear in the payload with the same value; an
// unparseable payload matches nothing.
func matchesFilter(instance *models.TriggerInstance, body []byte) bool {
	filter, ok := instance.Config["filter"].(map[string]any)
	if !ok || len(filter) == 0 {
		return true
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	for key, want := range filter {
		got, ok := payload[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}

	return true
}
