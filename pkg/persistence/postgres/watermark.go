package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// WatermarkRepository handles poll watermark database operations.
type WatermarkRepository struct {
	db *sql.DB
}

// Watermark returns the watermark for a trigger instance, or
// ErrWatermarkNotFound before the instance's first poll.
func (r *WatermarkRepository) Watermark(ctx context.Context, triggerInstanceID string) (*models.PollWatermark, error) {
	watermark := models.PollWatermark{TriggerInstanceID: triggerInstanceID}

	err := r.db.QueryRowContext(ctx,
		"SELECT last_seen_millis, last_polled_at FROM poll_watermarks WHERE trigger_instance_id = $1",
		triggerInstanceID,
	).Scan(&watermark.LastSeenMillis, &watermark.LastPolledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWatermarkNotFound
		}

		return nil, fmt.Errorf("failed to query watermark: %w", err)
	}

	return &watermark, nil
}

// SaveWatermark upserts the watermark for a trigger instance.
func (r *WatermarkRepository) SaveWatermark(ctx context.Context, watermark *models.PollWatermark) error {
	query := `
		INSERT INTO poll_watermarks (trigger_instance_id, last_seen_millis, last_polled_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (trigger_instance_id) DO UPDATE SET
			last_seen_millis = EXCLUDED.last_seen_millis,
			last_polled_at = EXCLUDED.last_polled_at
	`

	_, err := r.db.ExecContext(ctx, query,
		watermark.TriggerInstanceID, watermark.LastSeenMillis, watermark.LastPolledAt)
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}

	return nil
}
