package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// TriggerInstanceRepository handles trigger-instance database operations.
type TriggerInstanceRepository struct {
	db *sql.DB
}

// TriggerInstances returns all trigger instances.
func (r *TriggerInstanceRepository) TriggerInstances(ctx context.Context) ([]*models.TriggerInstance, error) {
	return r.query(ctx, "SELECT data FROM trigger_instances ORDER BY created_at")
}

// TriggerInstanceByID returns a trigger instance by its ID.
func (r *TriggerInstanceRepository) TriggerInstanceByID(ctx context.Context, id string) (*models.TriggerInstance, error) {
	row := r.db.QueryRowContext(ctx, "SELECT data FROM trigger_instances WHERE id = $1", id)

	instance, err := scanTriggerInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.TriggerInstanceError{Op: "ByID", InstanceID: id, Err: persistence.ErrTriggerInstanceNotFound}
		}

		return nil, &persistence.TriggerInstanceError{Op: "ByID", InstanceID: id, Err: err}
	}

	return instance, nil
}

// ActiveByKind returns the active instances of one trigger kind.
func (r *TriggerInstanceRepository) ActiveByKind(ctx context.Context, kind models.TriggerKind) ([]*models.TriggerInstance, error) {
	return r.query(ctx,
		"SELECT data FROM trigger_instances WHERE kind = $1 AND active ORDER BY created_at",
		string(kind))
}

// ActiveWebhooksByConnector returns the active webhook instances subscribed
// to one connector trigger.
func (r *TriggerInstanceRepository) ActiveWebhooksByConnector(ctx context.Context, connectorTriggerID string) ([]*models.TriggerInstance, error) {
	return r.query(ctx,
		"SELECT data FROM trigger_instances WHERE kind = $1 AND active AND connector_trigger_id = $2 ORDER BY created_at",
		string(models.TriggerKindWebhook), connectorTriggerID)
}

// SaveTriggerInstance upserts a trigger instance document.
func (r *TriggerInstanceRepository) SaveTriggerInstance(ctx context.Context, instance *models.TriggerInstance) error {
	now := nowUTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	data, err := json.Marshal(instance)
	if err != nil {
		return &persistence.TriggerInstanceError{Op: "Save", InstanceID: instance.ID, Err: fmt.Errorf("failed to marshal trigger instance: %w", err)}
	}

	query := `
		INSERT INTO trigger_instances (
			id, workflow_id, connector_trigger_id, kind, active,
			next_due_at, data, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			connector_trigger_id = EXCLUDED.connector_trigger_id,
			kind = EXCLUDED.kind,
			active = EXCLUDED.active,
			next_due_at = EXCLUDED.next_due_at,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.WorkflowID,
		instance.ConnectorTriggerID,
		string(instance.Kind),
		instance.Active,
		instance.NextDueAt,
		data,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return &persistence.TriggerInstanceError{Op: "Save", InstanceID: instance.ID, Err: err}
	}

	return nil
}

// DeleteTriggerInstance removes a trigger instance. Deleting a missing
// instance is a no-op.
func (r *TriggerInstanceRepository) DeleteTriggerInstance(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM trigger_instances WHERE id = $1", id)
	if err != nil {
		return &persistence.TriggerInstanceError{Op: "Delete", InstanceID: id, Err: err}
	}

	return nil
}

func (r *TriggerInstanceRepository) query(ctx context.Context, query string, args ...any) ([]*models.TriggerInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trigger instances: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var instances []*models.TriggerInstance

	for rows.Next() {
		instance, err := scanTriggerInstance(rows)
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trigger instances: %w", err)
	}

	return instances, nil
}

func scanTriggerInstance(row rowScanner) (*models.TriggerInstance, error) {
	var data []byte

	if err := row.Scan(&data); err != nil {
		return nil, err
	}

	var instance models.TriggerInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger instance: %w", err)
	}

	return &instance, nil
}
