package pathselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/protocol"
)

func TestAction_RunOffersCandidates(t *testing.T) {
	action, err := NewAction(map[string]any{
		"message":         "route this order",
		"candidate_paths": []any{"e-fast", "e-slow"},
	})
	require.NoError(t, err)

	result, err := action.Run(t.Context(), protocol.ConnectorContext{NodeID: "route"})
	require.NoError(t, err)
	require.NotNil(t, result.Interrupt)

	assert.Equal(t, models.InterruptKindPathDecision, result.Interrupt.Kind)
	assert.Equal(t, "route this order", result.Interrupt.Message)
	assert.Equal(t, []string{"e-fast", "e-slow"}, result.Interrupt.CandidatePaths)
}

func TestAction_CandidatesDefaultToEdges(t *testing.T) {
	action, err := NewAction(map[string]any{})
	require.NoError(t, err)

	result, err := action.Run(t.Context(), protocol.ConnectorContext{NodeID: "route"})
	require.NoError(t, err)
	require.NotNil(t, result.Interrupt)
	assert.Empty(t, result.Interrupt.CandidatePaths)
}

func TestAction_RejectsNonStringCandidates(t *testing.T) {
	_, err := NewAction(map[string]any{"candidate_paths": []any{"e-fast", 2}})
	require.Error(t, err)
}

func TestAction_MockRunPicksFirstCandidate(t *testing.T) {
	action, err := NewAction(map[string]any{"candidate_paths": []any{"e-fast", "e-slow"}})
	require.NoError(t, err)

	result, err := action.MockRun(t.Context(), protocol.ConnectorContext{})
	require.NoError(t, err)
	require.Nil(t, result.Interrupt)
	assert.Equal(t, []string{"e-fast"}, result.Output["chosen_path_ids"])
}
