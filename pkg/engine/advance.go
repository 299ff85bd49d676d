package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/otelhelper"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChosenPathsOutputKey is where a decision node's resolved path subset lands
// in its output, consulted when evaluating downstream edges.
const ChosenPathsOutputKey = "chosen_path_ids"

// Advance drains all currently runnable nodes of the execution. It returns
// when the execution reaches a terminal status, pauses, or runs out of ready
// nodes. The per-execution lock is taken only around state reads and commits,
// never across a connector call.
func (e *Engine) Advance(ctx context.Context, executionID string) (*models.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.advance",
		trace.WithAttributes(attribute.String(otelhelper.ExecutionIDKey, executionID)))
	defer span.End()

	for {
		workflow, execution, node, err := e.nextReady(ctx, executionID)
		if err != nil {
			otelhelper.SetError(span, err)
			return nil, err
		}

		if node == nil {
			return execution, nil
		}

		result, runErr := e.runNode(ctx, workflow, execution, node)

		execution, err = e.commitOutcome(ctx, executionID, node.ID, result, runErr)
		if err != nil {
			otelhelper.SetError(span, err)
			return nil, err
		}

		if execution.Terminal() || execution.Status == models.ExecutionStatusPaused {
			return execution, nil
		}
	}
}

// nextReady loads the execution under lock, honors cancellation, propagates
// skips to a fixpoint, and claims one ready node by marking it RUNNING.
// A nil node with nil error means there is nothing runnable right now.
func (e *Engine) nextReady(
	ctx context.Context,
	executionID string,
) (*models.Workflow, *models.Execution, *models.WorkflowNode, error) {
	lock := e.executionLock(executionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, nil, nil, err
	}

	if execution.Terminal() || execution.Status == models.ExecutionStatusPaused {
		return nil, execution, nil, nil
	}

	if execution.CancelRequested {
		if err := e.finishCancelled(ctx, execution); err != nil {
			return nil, nil, nil, err
		}

		return nil, execution, nil, nil
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	changed := e.propagateSkips(workflow, execution)

	node := e.pickReady(workflow, execution)
	if node == nil {
		done, err := e.settleIfDrained(ctx, workflow, execution)
		if err != nil {
			return nil, nil, nil, err
		}

		if !done && changed {
			if err := e.commit(ctx, execution); err != nil {
				return nil, nil, nil, err
			}
		}

		return nil, execution, nil, nil
	}

	state, _ := execution.NodeState(node.ID)
	state.Status = models.NodeStatusRunning
	now := e.clock.Now()
	state.StartedAt = &now

	if err := e.commit(ctx, execution); err != nil {
		return nil, nil, nil, err
	}

	return workflow, execution, node, nil
}

// pickReady returns the first pending node whose dependencies allow it to
// run. Workflow node order gives a deterministic scan.
func (e *Engine) pickReady(workflow *models.Workflow, execution *models.Execution) *models.WorkflowNode {
	for _, node := range workflow.Nodes {
		state, ok := execution.NodeState(node.ID)
		if !ok || state.Status != models.NodeStatusPending {
			continue
		}

		if e.dependenciesSatisfied(workflow, execution, node.ID) {
			return node
		}
	}

	return nil
}

// dependenciesSatisfied reports whether every incoming edge of the node has
// resolved and at least one of them is live.
func (e *Engine) dependenciesSatisfied(workflow *models.Workflow, execution *models.Execution, nodeID string) bool {
	incoming := workflow.IncomingEdges(nodeID)
	if len(incoming) == 0 {
		return true
	}

	live := false

	for _, edge := range incoming {
		switch e.edgeState(workflow, execution, edge) {
		case edgeWaiting:
			return false
		case edgeLive:
			live = true
		case edgeDead:
		}
	}

	return live
}

type edgeResolution int

const (
	edgeWaiting edgeResolution = iota
	edgeLive
	edgeDead
)

// edgeState resolves one edge against its source node's state. Normal edges
// fire on source success, error edges on source failure. A decision node's
// unchosen paths, and skipped sources, kill the edge.
func (e *Engine) edgeState(workflow *models.Workflow, execution *models.Execution, edge *models.Edge) edgeResolution {
	source, ok := execution.NodeState(edge.Source)
	if !ok {
		return edgeDead
	}

	switch source.Status {
	case models.NodeStatusPending, models.NodeStatusRunning, models.NodeStatusNeedsInput:
		return edgeWaiting
	case models.NodeStatusSkipped:
		return edgeDead
	case models.NodeStatusSuccess:
		if edge.OnError {
			return edgeDead
		}

		if chosen, restricted := chosenPaths(source); restricted && !chosen[edge.ID] {
			return edgeDead
		}

		return edgeLive
	case models.NodeStatusFailed:
		if edge.OnError {
			return edgeLive
		}

		return edgeDead
	}

	return edgeWaiting
}

// chosenPaths reads the path subset a decision node resolved to. The second
// return is false when the node does not restrict its outgoing edges.
func chosenPaths(state *models.NodeState) (map[string]bool, bool) {
	if state.Output == nil {
		return nil, false
	}

	raw, ok := state.Output[ChosenPathsOutputKey]
	if !ok {
		return nil, false
	}

	chosen := make(map[string]bool)

	switch ids := raw.(type) {
	case []string:
		for _, id := range ids {
			chosen[id] = true
		}
	case []any:
		for _, id := range ids {
			if s, ok := id.(string); ok {
				chosen[s] = true
			}
		}
	default:
		return nil, false
	}

	return chosen, true
}

// propagateSkips marks every pending node all of whose incoming edges are
// dead as SKIPPED, repeating until no node changes. Not-chosen branches and
// failure shadows collapse in one pass so they never linger as pending.
func (e *Engine) propagateSkips(workflow *models.Workflow, execution *models.Execution) bool {
	changed := false

	for {
		progressed := false

		for _, node := range workflow.Nodes {
			state, ok := execution.NodeState(node.ID)
			if !ok || state.Status != models.NodeStatusPending {
				continue
			}

			incoming := workflow.IncomingEdges(node.ID)
			if len(incoming) == 0 {
				continue
			}

			dead := 0

			for _, edge := range incoming {
				if e.edgeState(workflow, execution, edge) == edgeDead {
					dead++
				}
			}

			if dead == len(incoming) {
				state.Status = models.NodeStatusSkipped
				progressed = true
				changed = true
			}
		}

		if !progressed {
			return changed
		}
	}
}

// settleIfDrained finishes the execution when no node is pending or running
// anymore. Any failed node without a live error edge fails the run.
func (e *Engine) settleIfDrained(ctx context.Context, workflow *models.Workflow, execution *models.Execution) (bool, error) {
	failure := ""

	for _, state := range execution.Nodes {
		switch state.Status {
		case models.NodeStatusPending, models.NodeStatusRunning, models.NodeStatusNeedsInput:
			return false, nil
		case models.NodeStatusFailed:
			if !e.failureHandled(workflow, execution, state.ID) {
				failure = fmt.Sprintf("node %s failed: %s", state.ID, state.Error)
			}
		}
	}

	now := e.clock.Now()
	execution.FinishedAt = &now

	if failure != "" {
		execution.Status = models.ExecutionStatusFailed
		execution.FailureReason = failure
	} else {
		execution.Status = models.ExecutionStatusSuccess
	}

	if err := e.commit(ctx, execution); err != nil {
		return false, err
	}

	duration := now.Sub(execution.CreatedAt)

	if failure != "" {
		e.publish(ctx, execution.ID, events.ExecutionFailed{
			BaseEvent:   e.baseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Error:       failure,
			Duration:    duration,
		})
		e.logger.WarnContext(ctx, "Execution failed",
			"execution_id", execution.ID, "reason", failure)
	} else {
		e.publish(ctx, execution.ID, events.ExecutionCompleted{
			BaseEvent:   e.baseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Duration:    duration,
		})
		e.logger.InfoContext(ctx, "Execution completed",
			"execution_id", execution.ID, "duration", duration)
	}

	return true, nil
}

// failureHandled reports whether a failed node has an error edge to a node
// that consumed the failure.
func (e *Engine) failureHandled(workflow *models.Workflow, execution *models.Execution, nodeID string) bool {
	for _, edge := range workflow.OutgoingEdges(nodeID) {
		if !edge.OnError {
			continue
		}

		target, ok := execution.NodeState(edge.Target)
		if ok && target.Status != models.NodeStatusSkipped {
			return true
		}
	}

	return false
}

// runNode invokes the connector outside any lock.
func (e *Engine) runNode(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.Execution,
	node *models.WorkflowNode,
) (*protocol.RunResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.run_node",
		trace.WithAttributes(
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
			attribute.String(otelhelper.NodeIDKey, node.ID),
			attribute.String(otelhelper.ConnectorIDKey, node.ConnectorID)))
	defer span.End()

	action, err := e.registry.CreateAction(node.ConnectorID, node.Config)
	if err != nil {
		otelhelper.SetError(span, err)
		return nil, fmt.Errorf("failed to create connector %s: %w", node.ConnectorID, err)
	}

	cctx := protocol.ConnectorContext{
		ExecutionID: execution.ID,
		WorkflowID:  workflow.ID,
		NodeID:      node.ID,
		Config:      node.Config,
		Input:       e.collectInput(workflow, execution, node.ID),
		Logger:      e.logger.With("execution_id", execution.ID, "node_id", node.ID),
		HTTPClient:  e.httpClient,
	}

	if ref := connectionRef(node); ref != "" && e.connections != nil {
		connection, err := e.connections.Resolve(ctx, ref)
		if err != nil {
			otelhelper.SetError(span, err)
			return nil, fmt.Errorf("failed to resolve connection %s: %w", ref, err)
		}

		cctx.Connection = connection
	}

	var result *protocol.RunResult

	if execution.DryRun {
		result, err = action.MockRun(ctx, cctx)
	} else {
		result, err = action.Run(ctx, cctx)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return result, err
	}

	result, err = resolveInterrupt(action, result)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// resolveInterrupt gives the action a second look at its raw output.
// Connectors wrapping APIs whose "still pending" responses arrive as
// ordinary payloads implement protocol.InterruptResponder to reclassify
// them as interrupts after the fact.
func resolveInterrupt(action protocol.Action, result *protocol.RunResult) (*protocol.RunResult, error) {
	responder, ok := action.(protocol.InterruptResponder)
	if !ok || result == nil || result.Interrupt != nil {
		return result, nil
	}

	interrupt, err := responder.HandleInterruptingResponse(result.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect run response: %w", err)
	}

	if interrupt == nil {
		return result, nil
	}

	if interrupt.Partial == nil {
		interrupt.Partial = result.Output
	}

	return &protocol.RunResult{Interrupt: interrupt}, nil
}

func connectionRef(node *models.WorkflowNode) string {
	if node.Config == nil {
		return ""
	}

	ref, _ := node.Config["connection_ref"].(string)

	return ref
}

// collectInput merges the outputs of the node's live upstream dependencies,
// keyed by source node id.
func (e *Engine) collectInput(workflow *models.Workflow, execution *models.Execution, nodeID string) map[string]any {
	input := make(map[string]any)

	for _, edge := range workflow.IncomingEdges(nodeID) {
		if e.edgeState(workflow, execution, edge) != edgeLive {
			continue
		}

		source, ok := execution.NodeState(edge.Source)
		if ok && source.Output != nil {
			input[edge.Source] = source.Output
		}
	}

	return input
}

// commitOutcome records a node run's result under the execution lock:
// success, failure, or an interrupt that pauses the whole run.
func (e *Engine) commitOutcome(
	ctx context.Context,
	executionID string,
	nodeID string,
	result *protocol.RunResult,
	runErr error,
) (*models.Execution, error) {
	lock := e.executionLock(executionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return nil, err
	}

	state, ok := execution.NodeState(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, persistence.ErrNodeNotFound)
	}

	now := e.clock.Now()

	switch {
	case runErr != nil:
		state.Status = models.NodeStatusFailed
		state.Error = runErr.Error()
		state.FinishedAt = &now

	case result != nil && result.Interrupt != nil:
		if err := e.pauseOn(ctx, workflow, execution, state, result.Interrupt); err != nil {
			return nil, err
		}

	default:
		state.Status = models.NodeStatusSuccess
		state.FinishedAt = &now

		if result != nil {
			state.Output = result.Output
		}
	}

	e.emitNodeCompletion(ctx, execution, state, now)

	if execution.CancelRequested && execution.Status != models.ExecutionStatusPaused {
		if err := e.finishCancelled(ctx, execution); err != nil {
			return nil, err
		}

		return execution, nil
	}

	if err := e.commit(ctx, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// pauseOn freezes the execution on an interrupting node. The pause
// notification fires exactly once here; failed resume attempts never
// re-trigger it.
func (e *Engine) pauseOn(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.Execution,
	state *models.NodeState,
	interrupt *protocol.Interrupt,
) error {
	if !execution.CanTransition(models.ExecutionStatusPaused) {
		return fmt.Errorf("cannot pause execution %s in status %s", execution.ID, execution.Status)
	}

	candidates := interrupt.CandidatePaths
	if interrupt.Kind == models.InterruptKindPathDecision && len(candidates) == 0 {
		for _, edge := range workflow.OutgoingEdges(state.ID) {
			if !edge.OnError {
				candidates = append(candidates, edge.ID)
			}
		}
	}

	state.Status = models.NodeStatusNeedsInput
	state.Interrupt = &models.PendingInterrupt{
		Kind:           interrupt.Kind,
		Message:        interrupt.Message,
		Assignee:       interrupt.Assignee,
		CandidatePaths: candidates,
		Partial:        interrupt.Partial,
	}

	execution.Status = models.ExecutionStatusPaused

	e.publish(ctx, execution.ID, events.ExecutionPaused{
		BaseEvent:   e.baseEvent(events.ExecutionPausedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      state.ID,
	})

	assignee := interrupt.Assignee
	if assignee == "" {
		if node, ok := workflow.NodeByID(state.ID); ok {
			assignee = node.Assignee
		}
	}

	notification := events.NotificationRequested{
		BaseEvent:   e.baseEvent(events.NotificationRequestedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      state.ID,
		Assignee:    assignee,
		Message:     interrupt.Message,
	}

	if err := e.notifier.Notify(ctx, notification); err != nil {
		// The pause itself stands; the assignee can still discover it
		// through the API.
		e.logger.WarnContext(ctx, "Failed to send pause notification",
			"execution_id", execution.ID, "node_id", state.ID, "error", err)
	}

	e.logger.InfoContext(ctx, "Execution paused",
		"execution_id", execution.ID, "node_id", state.ID, "kind", interrupt.Kind)

	return nil
}

func (e *Engine) emitNodeCompletion(ctx context.Context, execution *models.Execution, state *models.NodeState, now time.Time) {
	var durationMs int64
	if state.StartedAt != nil {
		durationMs = now.Sub(*state.StartedAt).Milliseconds()
	}

	e.publish(ctx, execution.ID, events.NodeCompletion{
		BaseEvent:   e.baseEvent(events.NodeCompletionEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		NodeID:      state.ID,
		Status:      state.Status,
		Output:      state.Output,
		Error:       state.Error,
		DurationMs:  durationMs,
	})
}
