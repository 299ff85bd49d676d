// Package watermark maintains per-trigger-instance high-water-mark
// timestamps and filters poll batches down to not-yet-delivered events.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

// Batch is the outcome of filtering one poll's candidates.
type Batch struct {
	// Fresh holds the trigger-worthy events: strictly newer than the
	// pre-call watermark, plus events without an extractable timestamp.
	Fresh []map[string]any

	// NewWatermark is the advanced watermark, nil when nothing advanced.
	NewWatermark *int64

	// FirstPoll marks a seeding poll: the watermark was nil, so the batch
	// only establishes the boundary and fires nothing.
	FirstPoll bool
}

// FilterNew filters candidates against the current watermark. Ties are
// dropped so the boundary event is never re-delivered. Events with a nil
// timestamp cannot be deduplicated: always fresh, never advance the
// watermark. A nil watermark means first poll: nothing fires, the maximum
// observed timestamp seeds the boundary.
func FilterNew(candidates []map[string]any, extract protocol.TimestampExtractor, watermark *int64) Batch {
	batch := Batch{FirstPoll: watermark == nil}

	high := watermark

	for _, event := range candidates {
		ts := extract(event)
		if ts == nil {
			if !batch.FirstPoll {
				batch.Fresh = append(batch.Fresh, event)
			}

			continue
		}

		if high == nil || *ts > *high {
			v := *ts
			high = &v
		}

		if !batch.FirstPoll && *ts > *watermark {
			batch.Fresh = append(batch.Fresh, event)
		}
	}

	if high != nil && (watermark == nil || *high > *watermark) {
		batch.NewWatermark = high
	}

	return batch
}

// HandoffFunc delivers fresh events downstream. The watermark only advances
// after it returns nil.
type HandoffFunc func(fresh []map[string]any) error

// Tracker serializes the read-filter-handoff-commit cycle per trigger
// instance. A stale watermark duplicates deliveries and a too-eager one
// silently drops events, so the whole cycle runs under a per-instance lock.
type Tracker struct {
	store  persistence.WatermarkRepository
	clock  clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTracker(store persistence.WatermarkRepository, clk clock.Clock, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		clock:  clk,
		logger: logger.With("module", "watermark_tracker"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) instanceLock(instanceID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[instanceID] = lock
	}

	return lock
}

// Process filters one poll batch for the given trigger instance, hands fresh
// events downstream, and advances the watermark only after the handoff
// succeeds. A failed handoff leaves the watermark untouched so a retried
// poll re-fetches the same candidate window (at-least-once delivery).
func (t *Tracker) Process(
	ctx context.Context,
	instanceID string,
	candidates []map[string]any,
	extract protocol.TimestampExtractor,
	handoff HandoffFunc,
) (Batch, error) {
	lock := t.instanceLock(instanceID)
	lock.Lock()
	defer lock.Unlock()

	current, err := t.store.Watermark(ctx, instanceID)
	if err != nil && !errors.Is(err, persistence.ErrWatermarkNotFound) {
		return Batch{}, fmt.Errorf("failed to load watermark for %s: %w", instanceID, err)
	}

	var boundary *int64
	if current != nil {
		boundary = current.LastSeenMillis
	}

	batch := FilterNew(candidates, extract, boundary)

	if len(batch.Fresh) > 0 {
		if err := handoff(batch.Fresh); err != nil {
			return Batch{}, fmt.Errorf("handoff failed for %s, watermark not advanced: %w", instanceID, err)
		}
	}

	now := t.clock.Now()
	updated := &models.PollWatermark{
		TriggerInstanceID: instanceID,
		LastSeenMillis:    boundary,
		LastPolledAt:      &now,
	}
	if batch.NewWatermark != nil {
		updated.LastSeenMillis = batch.NewWatermark
	}

	if err := t.store.SaveWatermark(ctx, updated); err != nil {
		// Handoff already happened; a stale stored watermark re-delivers
		// on the next poll rather than losing events.
		return batch, fmt.Errorf("failed to persist watermark for %s: %w", instanceID, err)
	}

	t.logger.DebugContext(ctx, "Processed poll batch",
		"trigger_instance_id", instanceID,
		"candidates", len(candidates),
		"fresh", len(batch.Fresh),
		"first_poll", batch.FirstPoll)

	return batch, nil
}

// Preview filters candidates against a lookback window instead of the
// persisted watermark, for the more generous sample used when a user tests a
// trigger. The store is never touched.
func (t *Tracker) Preview(
	candidates []map[string]any,
	extract protocol.TimestampExtractor,
	lookback time.Duration,
) []map[string]any {
	since := t.clock.Now().Add(-lookback).UnixMilli()

	var sample []map[string]any

	for _, event := range candidates {
		ts := extract(event)
		if ts == nil || *ts >= since {
			sample = append(sample, event)
		}
	}

	return sample
}
