package feedpoll

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pollContext() protocol.ConnectorContext {
	return protocol.ConnectorContext{
		WorkflowID: "wf-1",
		NodeID:     "feed",
		HTTPClient: http.DefaultClient,
	}
}

func TestNewPollTrigger_RequiresURL(t *testing.T) {
	_, err := NewPollTrigger(map[string]any{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestPoll_BareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a","timestamp":1000},{"id":"b","timestamp":1200}]`))
	}))
	defer server.Close()

	trigger, err := NewPollTrigger(map[string]any{"url": server.URL}, testLogger())
	require.NoError(t, err)

	events, err := trigger.Poll(t.Context(), pollContext())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0]["id"])
	assert.Equal(t, "b", events[1]["id"])
}

func TestPoll_WrappedItemsAndAuthHeader(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"items":[{"id":"a","timestamp":1000}]}`))
	}))
	defer server.Close()

	trigger, err := NewPollTrigger(map[string]any{
		"url":     server.URL,
		"headers": map[string]any{"Authorization": "Bearer tok"},
	}, testLogger())
	require.NoError(t, err)

	events, err := trigger.Poll(t.Context(), pollContext())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestPoll_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	trigger, err := NewPollTrigger(map[string]any{"url": server.URL}, testLogger())
	require.NoError(t, err)

	_, err = trigger.Poll(t.Context(), pollContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestExtractTimestamp(t *testing.T) {
	trigger, err := NewPollTrigger(map[string]any{
		"url":             "https://feed.example.com",
		"timestamp_field": "updated_ms",
	}, testLogger())
	require.NoError(t, err)

	ts := trigger.ExtractTimestamp(map[string]any{"updated_ms": float64(1200)})
	require.NotNil(t, ts)
	assert.Equal(t, int64(1200), *ts)

	ts = trigger.ExtractTimestamp(map[string]any{"updated_ms": json.Number("1400")})
	require.NotNil(t, ts)
	assert.Equal(t, int64(1400), *ts)

	assert.Nil(t, trigger.ExtractTimestamp(map[string]any{"updated_ms": "not a number"}))
	assert.Nil(t, trigger.ExtractTimestamp(map[string]any{"other": float64(1)}))
}
