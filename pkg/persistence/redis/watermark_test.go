package redis_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/persistence/redis"
)

func setupStore(t *testing.T) *redis.WatermarkStore {
	t.Helper()

	redisURL := os.Getenv("TIDEFLOW_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TIDEFLOW_TEST_REDIS_URL not set")
	}

	store, err := redis.NewWatermarkStore(t.Context(), redisURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close(t.Context()))
	})

	return store
}

func TestWatermarkStore_RoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := t.Context()

	_, err := store.Watermark(ctx, "t-fresh")
	require.ErrorIs(t, err, persistence.ErrWatermarkNotFound)

	millis := int64(1400)
	require.NoError(t, store.SaveWatermark(ctx, &models.PollWatermark{
		TriggerInstanceID: "t-fresh",
		LastSeenMillis:    &millis,
	}))

	loaded, err := store.Watermark(ctx, "t-fresh")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastSeenMillis)
	assert.Equal(t, int64(1400), *loaded.LastSeenMillis)

	advanced := int64(2000)
	require.NoError(t, store.SaveWatermark(ctx, &models.PollWatermark{
		TriggerInstanceID: "t-fresh",
		LastSeenMillis:    &advanced,
	}))

	loaded, err = store.Watermark(ctx, "t-fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), *loaded.LastSeenMillis)
}
