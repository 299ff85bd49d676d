// Package approval pauses an execution until a human approves or annotates
// the step. The run never completes synchronously; it always interrupts and
// waits for resume data.
package approval

import (
	"context"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/template"
)

// Action requests human input and suspends the node.
type Action struct {
	message  string
	assignee string
	partial  map[string]any
}

// NewAction parses the node configuration.
func NewAction(config map[string]any) (*Action, error) {
	action := &Action{
		message: "approval required",
	}

	if message, ok := config["message"].(string); ok {
		action.message = message
	}

	if assignee, ok := config["assignee"].(string); ok {
		action.assignee = assignee
	}

	if partial, ok := config["partial"].(map[string]any); ok {
		action.partial = partial
	}

	return action, nil
}

// Run renders the request message and interrupts the execution until the
// assignee responds.
func (a *Action) Run(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	rendered, err := template.RenderWithContext(a.message, &cctx)
	if err != nil {
		return nil, fmt.Errorf("failed to render approval message template: %w", err)
	}

	partial := map[string]any{"requested": true}
	for k, v := range a.partial {
		partial[k] = v
	}

	return &protocol.RunResult{Interrupt: &protocol.Interrupt{
		Kind:     models.InterruptKindInput,
		Message:  fmt.Sprintf("%v", rendered),
		Assignee: a.assignee,
		Partial:  partial,
	}}, nil
}

// MockRun auto-approves so dry runs flow through without pausing.
func (a *Action) MockRun(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	return &protocol.RunResult{Output: map[string]any{
		"approved": true,
		"mock":     true,
	}}, nil
}
