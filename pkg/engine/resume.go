package engine

import (
	"context"
	"fmt"

	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/otelhelper"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Resume applies a caller's payload to a paused node and re-advances the
// execution. Exactly one resume wins per pause: the node must still be
// waiting for input, otherwise the call fails with ErrResumeConflict. An
// invalid payload is rejected with ErrInvalidResume before any state changes,
// so the pending interrupt stays consumable.
func (e *Engine) Resume(ctx context.Context, req models.ResumeRequest) (*models.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.resume",
		trace.WithAttributes(
			attribute.String(otelhelper.ExecutionIDKey, req.ExecutionID),
			attribute.String(otelhelper.NodeIDKey, req.NodeID)))
	defer span.End()

	if err := req.Validate(); err != nil {
		otelhelper.SetError(span, err)
		return nil, fmt.Errorf("%w: %s", ErrInvalidResume, err)
	}

	if err := e.applyResume(ctx, req); err != nil {
		otelhelper.SetError(span, err)
		return nil, err
	}

	return e.Advance(ctx, req.ExecutionID)
}

func (e *Engine) applyResume(ctx context.Context, req models.ResumeRequest) error {
	lock := e.executionLock(req.ExecutionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, req.ExecutionID)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return fmt.Errorf("cannot resume %s: %w", req.ExecutionID, ErrExecutionFinished)
	}

	state, ok := execution.NodeState(req.NodeID)
	if !ok {
		return fmt.Errorf("node %s: %w", req.NodeID, persistence.ErrNodeNotFound)
	}

	if state.Status != models.NodeStatusNeedsInput || state.Interrupt == nil {
		return fmt.Errorf("node %s is %s: %w", req.NodeID, state.Status, ErrResumeConflict)
	}

	output, err := resolveResume(state.Interrupt, req)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	state.Status = models.NodeStatusSuccess
	state.Output = output
	state.Interrupt = nil
	state.FinishedAt = &now

	if execution.CanTransition(models.ExecutionStatusRunning) {
		execution.Status = models.ExecutionStatusRunning
	}

	if err := e.commit(ctx, execution); err != nil {
		return err
	}

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   e.baseEvent(events.ExecutionResumedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      req.NodeID,
	})

	e.logger.InfoContext(ctx, "Execution resumed",
		"execution_id", execution.ID, "node_id", req.NodeID)

	return nil
}

// resolveResume validates the payload against the pending interrupt and
// builds the resumed node's output. It never mutates state, so a rejected
// payload leaves the pause intact.
func resolveResume(interrupt *models.PendingInterrupt, req models.ResumeRequest) (map[string]any, error) {
	output := make(map[string]any, len(interrupt.Partial)+len(req.MergeData)+1)
	for k, v := range interrupt.Partial {
		output[k] = v
	}

	switch interrupt.Kind {
	case models.InterruptKindInput:
		if len(req.ChosenPathIDs) > 0 {
			return nil, fmt.Errorf("node awaits input, not a path decision: %w", ErrInvalidResume)
		}

		for k, v := range req.MergeData {
			output[k] = v
		}

	case models.InterruptKindPathDecision:
		if len(req.ChosenPathIDs) == 0 {
			return nil, fmt.Errorf("path decision requires at least one chosen path: %w", ErrInvalidResume)
		}

		candidates := make(map[string]bool, len(interrupt.CandidatePaths))
		for _, id := range interrupt.CandidatePaths {
			candidates[id] = true
		}

		for _, id := range req.ChosenPathIDs {
			if !candidates[id] {
				return nil, fmt.Errorf("unknown path id %s: %w", id, ErrInvalidResume)
			}
		}

		for k, v := range req.MergeData {
			output[k] = v
		}

		output[ChosenPathsOutputKey] = req.ChosenPathIDs

	default:
		return nil, fmt.Errorf("unknown interrupt kind %s: %w", interrupt.Kind, ErrInvalidResume)
	}

	return output, nil
}
