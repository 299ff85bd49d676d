package logmsg

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

func TestNewAction_Validation(t *testing.T) {
	_, err := NewAction(map[string]any{})
	require.Error(t, err)

	_, err = NewAction(map[string]any{"message": "hi", "level": "loud"})
	require.Error(t, err)
}

func TestAction_RendersMessage(t *testing.T) {
	action, err := NewAction(map[string]any{
		"message": "fetched {{.input.fetch.rows}} rows",
		"level":   "warn",
	})
	require.NoError(t, err)

	cctx := protocol.ConnectorContext{
		NodeID: "note",
		Input:  map[string]any{"fetch": map[string]any{"rows": 3}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, err := action.Run(t.Context(), cctx)
	require.NoError(t, err)
	assert.Equal(t, "fetched 3 rows", result.Output["message"])
	assert.Equal(t, "warn", result.Output["level"])
	assert.Equal(t, true, result.Output["logged"])
}

func TestAction_MockRunDoesNotLog(t *testing.T) {
	action, err := NewAction(map[string]any{"message": "hello"})
	require.NoError(t, err)

	result, err := action.MockRun(t.Context(), protocol.ConnectorContext{})
	require.NoError(t, err)
	assert.Equal(t, false, result.Output["logged"])
	assert.Equal(t, true, result.Output["mock"])
}
