// Package memory provides map-backed persistence, used by tests and as a
// throwaway store for local experiments. Data does not survive the process.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

type Persistence struct {
	mu         sync.RWMutex
	workflows  map[string]*models.Workflow
	triggers   map[string]*models.TriggerInstance
	executions map[string]*models.Execution
	watermarks map[string]*models.PollWatermark
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:  make(map[string]*models.Workflow),
		triggers:   make(map[string]*models.TriggerInstance),
		executions: make(map[string]*models.Execution),
		watermarks: make(map[string]*models.PollWatermark),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return (*workflowRepository)(p)
}

func (p *Persistence) TriggerInstanceRepository() persistence.TriggerInstanceRepository {
	return (*triggerInstanceRepository)(p)
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return (*executionRepository)(p)
}

func (p *Persistence) WatermarkRepository() persistence.WatermarkRepository {
	return (*watermarkRepository)(p)
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// clone deep-copies an entity through JSON so callers never share mutable
// state with the store.
func clone[T any](in *T) *T {
	data, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}

	return out
}

type workflowRepository Persistence

func (r *workflowRepository) Workflows(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(r.workflows))
	for _, workflow := range r.workflows {
		workflows = append(workflows, clone(workflow))
	}

	return workflows, nil
}

func (r *workflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return clone(workflow), nil
}

func (r *workflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[workflow.ID] = clone(workflow)

	return nil
}

func (r *workflowRepository) DeleteWorkflow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.workflows, id)

	return nil
}

type triggerInstanceRepository Persistence

func (r *triggerInstanceRepository) TriggerInstances(_ context.Context) ([]*models.TriggerInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instances := make([]*models.TriggerInstance, 0, len(r.triggers))
	for _, instance := range r.triggers {
		instances = append(instances, clone(instance))
	}

	return instances, nil
}

func (r *triggerInstanceRepository) TriggerInstanceByID(_ context.Context, id string) (*models.TriggerInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.triggers[id]
	if !ok {
		return nil, persistence.ErrTriggerInstanceNotFound
	}

	return clone(instance), nil
}

func (r *triggerInstanceRepository) ActiveByKind(ctx context.Context, kind models.TriggerKind) ([]*models.TriggerInstance, error) {
	instances, err := r.TriggerInstances(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.TriggerInstance, 0, len(instances))

	for _, instance := range instances {
		if instance.Active && instance.Kind == kind {
			active = append(active, instance)
		}
	}

	return active, nil
}

func (r *triggerInstanceRepository) ActiveWebhooksByConnector(ctx context.Context, connectorTriggerID string) ([]*models.TriggerInstance, error) {
	instances, err := r.ActiveByKind(ctx, models.TriggerKindWebhook)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.TriggerInstance, 0, len(instances))

	for _, instance := range instances {
		if instance.ConnectorTriggerID == connectorTriggerID {
			matched = append(matched, instance)
		}
	}

	return matched, nil
}

func (r *triggerInstanceRepository) SaveTriggerInstance(_ context.Context, instance *models.TriggerInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggers[instance.ID] = clone(instance)

	return nil
}

func (r *triggerInstanceRepository) DeleteTriggerInstance(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.triggers, id)

	return nil
}

type executionRepository Persistence

func (r *executionRepository) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return clone(execution), nil
}

func (r *executionRepository) SaveExecution(_ context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.executions[execution.ID]; ok && execution.Version <= stored.Version {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrVersionConflict)
	}

	r.executions[execution.ID] = clone(execution)

	return nil
}

func (r *executionRepository) ExecutionsByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := make([]*models.Execution, 0)

	for _, execution := range r.executions {
		if execution.WorkflowID == workflowID {
			executions = append(executions, clone(execution))
		}
	}

	return executions, nil
}

type watermarkRepository Persistence

func (r *watermarkRepository) Watermark(_ context.Context, triggerInstanceID string) (*models.PollWatermark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watermark, ok := r.watermarks[triggerInstanceID]
	if !ok {
		return nil, persistence.ErrWatermarkNotFound
	}

	return clone(watermark), nil
}

func (r *watermarkRepository) SaveWatermark(_ context.Context, watermark *models.PollWatermark) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.watermarks[watermark.TriggerInstanceID] = clone(watermark)

	return nil
}
