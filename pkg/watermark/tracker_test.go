package watermark

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
)

// In-memory watermark store for tests.
type testWatermarkStore struct {
	mu         sync.Mutex
	watermarks map[string]*models.PollWatermark
	saveErr    error
}

func newTestWatermarkStore() *testWatermarkStore {
	return &testWatermarkStore{watermarks: make(map[string]*models.PollWatermark)}
}

func (s *testWatermarkStore) Watermark(_ context.Context, id string) (*models.PollWatermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wm, ok := s.watermarks[id]
	if !ok {
		return nil, persistence.ErrWatermarkNotFound
	}

	return wm, nil
}

func (s *testWatermarkStore) SaveWatermark(_ context.Context, wm *models.PollWatermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}

	s.watermarks[wm.TriggerInstanceID] = wm

	return nil
}

func millis(v int64) *int64 { return &v }

func eventAt(ts int64) map[string]any {
	return map[string]any{"ts": ts}
}

func extractTS(event map[string]any) *int64 {
	v, ok := event["ts"].(int64)
	if !ok {
		return nil
	}

	return &v
}

func TestFilterNew_BoundaryTiesDropped(t *testing.T) {
	candidates := []map[string]any{
		eventAt(900), eventAt(1000), eventAt(1100), eventAt(1200),
	}

	batch := FilterNew(candidates, extractTS, millis(1000))

	require.Len(t, batch.Fresh, 2)
	assert.Equal(t, int64(1100), batch.Fresh[0]["ts"])
	assert.Equal(t, int64(1200), batch.Fresh[1]["ts"])
	require.NotNil(t, batch.NewWatermark)
	assert.Equal(t, int64(1200), *batch.NewWatermark)
	assert.False(t, batch.FirstPoll)
}

func TestFilterNew_FirstPollSeedsWithoutFiring(t *testing.T) {
	candidates := []map[string]any{eventAt(500), eventAt(800), eventAt(600)}

	batch := FilterNew(candidates, extractTS, nil)

	assert.Empty(t, batch.Fresh)
	assert.True(t, batch.FirstPoll)
	require.NotNil(t, batch.NewWatermark)
	assert.Equal(t, int64(800), *batch.NewWatermark)
}

func TestFilterNew_NilTimestampsAlwaysFresh(t *testing.T) {
	noTS := map[string]any{"id": "opaque"}
	candidates := []map[string]any{noTS, eventAt(50)}

	batch := FilterNew(candidates, extractTS, millis(100))

	// The opaque event is delivered but never advances the watermark.
	require.Len(t, batch.Fresh, 1)
	assert.Equal(t, "opaque", batch.Fresh[0]["id"])
	assert.Nil(t, batch.NewWatermark)
}

func TestFilterNew_WatermarkNeverRegresses(t *testing.T) {
	batch := FilterNew([]map[string]any{eventAt(10)}, extractTS, millis(1000))

	assert.Empty(t, batch.Fresh)
	assert.Nil(t, batch.NewWatermark)
}

func newTestTracker(store persistence.WatermarkRepository) *Tracker {
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	return NewTracker(store, clk, slog.Default())
}

func TestTrackerProcess_AdvancesAfterHandoff(t *testing.T) {
	store := newTestWatermarkStore()
	tracker := newTestTracker(store)
	ctx := context.Background()

	// Seed poll.
	batch, err := tracker.Process(ctx, "ti-1",
		[]map[string]any{eventAt(1000)}, extractTS,
		func(fresh []map[string]any) error {
			t.Fatal("seed poll must not hand off events")

			return nil
		})
	require.NoError(t, err)
	assert.True(t, batch.FirstPoll)

	// Second poll delivers only the strictly newer events.
	var delivered []map[string]any

	batch, err = tracker.Process(ctx, "ti-1",
		[]map[string]any{eventAt(900), eventAt(1000), eventAt(1100), eventAt(1200)},
		extractTS,
		func(fresh []map[string]any) error {
			delivered = fresh

			return nil
		})
	require.NoError(t, err)
	require.Len(t, delivered, 2)
	assert.Equal(t, int64(1200), *batch.NewWatermark)

	stored, err := store.Watermark(ctx, "ti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), *stored.LastSeenMillis)
	assert.NotNil(t, stored.LastPolledAt)
}

func TestTrackerProcess_FailedHandoffKeepsWatermark(t *testing.T) {
	store := newTestWatermarkStore()
	tracker := newTestTracker(store)
	ctx := context.Background()

	_, err := tracker.Process(ctx, "ti-1", []map[string]any{eventAt(100)}, extractTS, nil)
	require.NoError(t, err)

	handoffErr := errors.New("downstream unavailable")

	_, err = tracker.Process(ctx, "ti-1",
		[]map[string]any{eventAt(200)}, extractTS,
		func([]map[string]any) error { return handoffErr })
	require.ErrorIs(t, err, handoffErr)

	// Watermark stayed at the seed value, so a retry re-delivers.
	stored, err := store.Watermark(ctx, "ti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), *stored.LastSeenMillis)

	var retried []map[string]any

	_, err = tracker.Process(ctx, "ti-1",
		[]map[string]any{eventAt(200)}, extractTS,
		func(fresh []map[string]any) error {
			retried = fresh

			return nil
		})
	require.NoError(t, err)
	assert.Len(t, retried, 1)
}

func TestTrackerProcess_SerializedPerInstance(t *testing.T) {
	store := newTestWatermarkStore()
	tracker := newTestTracker(store)
	ctx := context.Background()

	_, err := tracker.Process(ctx, "ti-1", []map[string]any{eventAt(0)}, extractTS, nil)
	require.NoError(t, err)

	// Concurrent polls with the same candidate window must deliver the
	// batch exactly once: the loser of the lock race sees the advanced
	// watermark.
	var (
		mu        sync.Mutex
		delivered int
		wg        sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, _ = tracker.Process(ctx, "ti-1",
				[]map[string]any{eventAt(500)}, extractTS,
				func(fresh []map[string]any) error {
					mu.Lock()
					delivered += len(fresh)
					mu.Unlock()

					return nil
				})
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, delivered)
}

func TestTrackerPreview_UsesLookbackNotStore(t *testing.T) {
	store := newTestWatermarkStore()
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(store, clk, slog.Default())

	recent := clk.Now().Add(-10 * time.Minute).UnixMilli()
	old := clk.Now().Add(-3 * time.Hour).UnixMilli()

	sample := tracker.Preview(
		[]map[string]any{eventAt(recent), eventAt(old)},
		extractTS, time.Hour)

	require.Len(t, sample, 1)
	assert.Equal(t, recent, sample[0]["ts"])
	assert.Empty(t, store.watermarks)
}
