// Package persistence provides the storage abstraction for workflows,
// trigger instances, executions, and poll watermarks.
package persistence

import (
	"context"

	"github.com/tideflow-io/tideflow/pkg/models"
)

type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type TriggerInstanceRepository interface {
	TriggerInstances(ctx context.Context) ([]*models.TriggerInstance, error)
	TriggerInstanceByID(ctx context.Context, id string) (*models.TriggerInstance, error)

	// ActiveByKind returns the active instances of one trigger kind, the
	// scanner's working set.
	ActiveByKind(ctx context.Context, kind models.TriggerKind) ([]*models.TriggerInstance, error)

	// ActiveWebhooksByConnector returns the active webhook instances
	// subscribed to one connector trigger, the router's matching set.
	ActiveWebhooksByConnector(ctx context.Context, connectorTriggerID string) ([]*models.TriggerInstance, error)

	SaveTriggerInstance(ctx context.Context, instance *models.TriggerInstance) error
	DeleteTriggerInstance(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)

	// SaveExecution persists the execution with optimistic concurrency:
	// the write is rejected with ErrVersionConflict when the stored
	// version does not immediately precede the given one.
	SaveExecution(ctx context.Context, execution *models.Execution) error

	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

type WatermarkRepository interface {
	// Watermark returns ErrWatermarkNotFound before the first poll of an
	// instance.
	Watermark(ctx context.Context, triggerInstanceID string) (*models.PollWatermark, error)
	SaveWatermark(ctx context.Context, watermark *models.PollWatermark) error
}

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TriggerInstanceRepository() TriggerInstanceRepository
	ExecutionRepository() ExecutionRepository
	WatermarkRepository() WatermarkRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
