package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/recurrence"
)

// ErrTriggerInstanceNotFound is returned when a trigger instance is not found.
var ErrTriggerInstanceNotFound = persistence.ErrTriggerInstanceNotFound

// ConfigValidator is the part of the connector registry the service needs:
// the activation-time config gate.
type ConfigValidator interface {
	ValidateTriggerConfig(connectorID string, config map[string]any) error
}

// TriggerInstances implements trigger instance lifecycle operations.
type TriggerInstances struct {
	persistence persistence.Persistence
	validator   ConfigValidator
}

// NewTriggerInstances creates a new trigger instance service.
func NewTriggerInstances(p persistence.Persistence, validator ConfigValidator) *TriggerInstances {
	return &TriggerInstances{persistence: p, validator: validator}
}

// List returns all trigger instances.
func (s *TriggerInstances) List(ctx context.Context) ([]*models.TriggerInstance, error) {
	instances, err := s.persistence.TriggerInstanceRepository().TriggerInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger instances: %w", err)
	}

	return instances, nil
}

// FetchByID returns a single trigger instance.
func (s *TriggerInstances) FetchByID(ctx context.Context, id string) (*models.TriggerInstance, error) {
	instance, err := s.persistence.TriggerInstanceRepository().TriggerInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

// Create validates and persists a new trigger instance. Instances start
// inactive; Activate arms them after the config gate has passed.
func (s *TriggerInstances) Create(ctx context.Context, instance *models.TriggerInstance) (*models.TriggerInstance, error) {
	if instance == nil {
		return nil, &ServiceError{Op: "Create", Err: ErrInvalidRequest, Message: "trigger instance cannot be nil"}
	}

	if _, err := s.persistence.WorkflowRepository().WorkflowByID(ctx, instance.WorkflowID); err != nil {
		return nil, err
	}

	if err := s.validateConfig(instance); err != nil {
		return nil, &ServiceError{Op: "Create", Err: err}
	}

	if instance.ID == "" {
		instance.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	instance.Active = false
	instance.NextDueAt = nil
	instance.CreatedAt = now
	instance.UpdatedAt = now

	if err := s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to save trigger instance: %w", err)
	}

	return instance, nil
}

// Update replaces a trigger instance's configuration. Kind is immutable
// after creation.
func (s *TriggerInstances) Update(ctx context.Context, id string, instance *models.TriggerInstance) (*models.TriggerInstance, error) {
	if instance == nil {
		return nil, &ServiceError{Op: "Update", Err: ErrInvalidRequest, Message: "trigger instance cannot be nil"}
	}

	existing, err := s.persistence.TriggerInstanceRepository().TriggerInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if instance.Kind != "" && instance.Kind != existing.Kind {
		return nil, &ServiceError{Op: "Update", Err: ErrKindImmutable}
	}

	instance.ID = existing.ID
	instance.Kind = existing.Kind
	instance.Active = existing.Active
	instance.CreatedAt = existing.CreatedAt
	instance.UpdatedAt = time.Now().UTC()

	if err := s.validateConfig(instance); err != nil {
		return nil, &ServiceError{Op: "Update", Err: err}
	}

	// A config change invalidates the precomputed schedule; the scanner
	// reseeds from the new rule on its next pass.
	instance.NextDueAt = nil

	if err := s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to save trigger instance: %w", err)
	}

	return instance, nil
}

// Activate arms a trigger instance after re-running the config gate, so a
// connector schema change since creation still blocks bad config from going
// live. NextDueAt is cleared so the scanner seeds a fresh schedule.
func (s *TriggerInstances) Activate(ctx context.Context, id string) (*models.TriggerInstance, error) {
	instance, err := s.persistence.TriggerInstanceRepository().TriggerInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateConfig(instance); err != nil {
		return nil, &ServiceError{Op: "Activate", Err: err}
	}

	instance.Active = true
	instance.NextDueAt = nil
	instance.UpdatedAt = time.Now().UTC()

	if err := s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to save trigger instance: %w", err)
	}

	return instance, nil
}

// Deactivate disarms a trigger instance.
func (s *TriggerInstances) Deactivate(ctx context.Context, id string) (*models.TriggerInstance, error) {
	instance, err := s.persistence.TriggerInstanceRepository().TriggerInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}

	instance.Active = false
	instance.UpdatedAt = time.Now().UTC()

	if err := s.persistence.TriggerInstanceRepository().SaveTriggerInstance(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to save trigger instance: %w", err)
	}

	return instance, nil
}

// Delete removes a trigger instance. Deleting a missing instance is a no-op.
func (s *TriggerInstances) Delete(ctx context.Context, id string) error {
	if err := s.persistence.TriggerInstanceRepository().DeleteTriggerInstance(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrTriggerInstanceNotFound) {
			return nil
		}

		return fmt.Errorf("failed to delete trigger instance: %w", err)
	}

	return nil
}

func (s *TriggerInstances) validateConfig(instance *models.TriggerInstance) error {
	switch instance.Kind {
	case models.TriggerKindSchedule:
		// Schedule triggers carry a recurrence rule instead of a
		// connector config.
		if _, err := recurrence.RuleFromConfig(instance.Config); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTriggerConfig, err)
		}

		return nil
	case models.TriggerKindPoll, models.TriggerKindWebhook:
		if instance.ConnectorTriggerID == "" {
			return fmt.Errorf("%w: connector_trigger_id is required", ErrInvalidTriggerConfig)
		}

		if err := s.validator.ValidateTriggerConfig(instance.ConnectorTriggerID, instance.Config); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTriggerConfig, err)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown trigger kind %q", ErrInvalidTriggerConfig, instance.Kind)
	}
}
