package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// TriggerInstanceRepository handles trigger-instance file operations.
type TriggerInstanceRepository struct {
	root string
}

func NewTriggerInstanceRepository(root string) *TriggerInstanceRepository {
	return &TriggerInstanceRepository{root: root}
}

// TriggerInstances returns all stored trigger instances.
func (tr *TriggerInstanceRepository) TriggerInstances(ctx context.Context) ([]*models.TriggerInstance, error) {
	dir := path.Join(tr.root, "trigger_instances")

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil || len(jsonFiles) == 0 {
		return []*models.TriggerInstance{}, nil
	}

	instances := make([]*models.TriggerInstance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		instanceID := file[:len(file)-5]

		instance, err := tr.TriggerInstanceByID(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load trigger instance %s: %w", instanceID, err)
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

// TriggerInstanceByID retrieves a trigger instance from the file system.
func (tr *TriggerInstanceRepository) TriggerInstanceByID(_ context.Context, id string) (*models.TriggerInstance, error) {
	filePath := filepath.Clean(path.Join(tr.root, "trigger_instances", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrTriggerInstanceNotFound
		}

		return nil, &persistence.TriggerInstanceError{Op: "ByID", InstanceID: id, Err: err}
	}

	var instance models.TriggerInstance

	err = json.Unmarshal(body, &instance)
	if err != nil {
		return nil, &persistence.TriggerInstanceError{Op: "ByID", InstanceID: id, Err: err}
	}

	return &instance, nil
}

// ActiveByKind returns the active trigger instances of the given kind, the
// scanner's working set.
func (tr *TriggerInstanceRepository) ActiveByKind(ctx context.Context, kind models.TriggerKind) ([]*models.TriggerInstance, error) {
	instances, err := tr.TriggerInstances(ctx)
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

// ActiveWebhooksByConnector returns the active webhook instances bound to the
// given connector trigger, the router's fan-out candidates.
func (tr *TriggerInstanceRepository) ActiveWebhooksByConnector(ctx context.Context, connectorTriggerID string) ([]*models.TriggerInstance, error) {
	instances, err := tr.ActiveByKind(ctx, models.TriggerKindWebhook)
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

// SaveTriggerInstance writes the trigger instance to the file system.
func (tr *TriggerInstanceRepository) SaveTriggerInstance(_ context.Context, instance *models.TriggerInstance) error {
	err := os.MkdirAll(path.Join(tr.root, "trigger_instances"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create trigger_instances directory: %w", err)
	}

	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	data, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		return &persistence.TriggerInstanceError{Op: "Save", InstanceID: instance.ID, Err: err}
	}

	filePath := path.Join(tr.root, "trigger_instances", instance.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// DeleteTriggerInstance removes a trigger instance by its ID.
func (tr *TriggerInstanceRepository) DeleteTriggerInstance(_ context.Context, id string) error {
	filePath := path.Join(tr.root, "trigger_instances", id+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return &persistence.TriggerInstanceError{Op: "Delete", InstanceID: id, Err: err}
	}

	return nil
}
