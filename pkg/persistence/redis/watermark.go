// Package redis provides a Redis-backed poll watermark store. Watermarks are
// small and rewritten on every poll tick, so high-churn deployments keep them
// in Redis while the document stores hold the rest.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

const keyPrefix = "tideflow:watermark:"

// WatermarkStore implements the watermark repository on Redis.
type WatermarkStore struct {
	client goredis.UniversalClient
}

// NewWatermarkStore connects to the given redis URL.
func NewWatermarkStore(ctx context.Context, redisURL string) (*WatermarkStore, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &WatermarkStore{client: client}, nil
}

// NewWatermarkStoreWithClient wraps an existing client, used in tests.
func NewWatermarkStoreWithClient(client goredis.UniversalClient) *WatermarkStore {
	return &WatermarkStore{client: client}
}

// Watermark returns the watermark for a trigger instance, or
// ErrWatermarkNotFound before the instance's first poll.
func (s *WatermarkStore) Watermark(ctx context.Context, triggerInstanceID string) (*models.PollWatermark, error) {
	raw, err := s.client.Get(ctx, keyPrefix+triggerInstanceID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.ErrWatermarkNotFound
		}

		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}

	var watermark models.PollWatermark
	if err := json.Unmarshal(raw, &watermark); err != nil {
		return nil, fmt.Errorf("failed to unmarshal watermark: %w", err)
	}

	return &watermark, nil
}

// SaveWatermark upserts the watermark for a trigger instance.
func (s *WatermarkStore) SaveWatermark(ctx context.Context, watermark *models.PollWatermark) error {
	raw, err := json.Marshal(watermark)
	if err != nil {
		return fmt.Errorf("failed to marshal watermark: %w", err)
	}

	err = s.client.Set(ctx, keyPrefix+watermark.TriggerInstanceID, raw, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}

	return nil
}

// HealthCheck verifies the redis connection is healthy.
func (s *WatermarkStore) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the redis connection.
func (s *WatermarkStore) Close(ctx context.Context) error {
	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}
