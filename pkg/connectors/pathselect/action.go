// Package pathselect pauses an execution for a human routing decision: the
// resume payload chooses which downstream paths stay live, the rest are
// pruned.
package pathselect

import (
	"context"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/template"
)

// Action interrupts with a path decision.
type Action struct {
	message    string
	assignee   string
	candidates []string
}

// NewAction parses the node configuration.
func NewAction(config map[string]any) (*Action, error) {
	action := &Action{
		message: "choose a path",
	}

	if message, ok := config["message"].(string); ok {
		action.message = message
	}

	if assignee, ok := config["assignee"].(string); ok {
		action.assignee = assignee
	}

	// Candidates default to the node's outgoing edges when unset.
	if raw, ok := config["candidate_paths"].([]any); ok {
		for _, item := range raw {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("candidate_paths entries must be strings, got %T", item)
			}

			action.candidates = append(action.candidates, id)
		}
	}

	return action, nil
}

// Run renders the prompt and interrupts with the candidate paths.
func (a *Action) Run(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	rendered, err := template.RenderWithContext(a.message, &cctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render path prompt template: %w", err)
	}

	return &protocol.RunResult{Interrupt: &protocol.Interrupt{
		Kind:           models.InterruptKindPathDecision,
		Message:        fmt.Sprintf("%v", rendered),
		Assignee:       a.assignee,
		CandidatePaths: a.candidates,
	}}, nil
}

// MockRun picks the first configured candidate so dry runs take a single
// deterministic branch. Without configured candidates the decision falls to
// the engine's edge-derived default, so the mock keeps every path live.
func (a *Action) MockRun(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	output := map[string]any{"mock": true}

	if len(a.candidates) > 0 {
		output["chosen_path_ids"] = []string{a.candidates[0]}
	}

	return &protocol.RunResult{Output: output}, nil
}
