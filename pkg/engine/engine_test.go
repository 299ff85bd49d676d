package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/otelhelper"
	"github.com/tideflow-io/tideflow/pkg/persistence/memory"
	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubAction struct {
	run  func(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error)
	mock func(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error)
}

func (a *stubAction) Run(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	return a.run(ctx, cctx)
}

func (a *stubAction) MockRun(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	if a.mock != nil {
		return a.mock(ctx, cctx)
	}

	return &protocol.RunResult{Output: map[string]any{"mocked": true}}, nil
}

type stubFactory struct {
	id     string
	action protocol.Action
}

func (f *stubFactory) Create(_ map[string]any) (protocol.Action, error) { return f.action, nil }
func (f *stubFactory) ID() string                                       { return f.id }
func (f *stubFactory) Schema() map[string]any                           { return nil }

type countingNotifier struct {
	notifications []events.NotificationRequested
}

func (n *countingNotifier) Notify(_ context.Context, notification events.NotificationRequested) error {
	n.notifications = append(n.notifications, notification)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func succeedWith(output map[string]any) *stubAction {
	return &stubAction{
		run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
			return &protocol.RunResult{Output: output}, nil
		},
	}
}

type engineFixture struct {
	engine      *Engine
	persistence *memory.Persistence
	registry    *registry.Registry
	notifier    *countingNotifier
}

func newFixture(t *testing.T, workflow *models.Workflow, actions map[string]protocol.Action) *engineFixture {
	t.Helper()

	store := memory.NewPersistence()
	require.NoError(t, store.WorkflowRepository().SaveWorkflow(t.Context(), workflow))

	reg := registry.NewRegistry(testLogger())
	for id, action := range actions {
		reg.RegisterAction(&stubFactory{id: id, action: action})
	}

	notifier := &countingNotifier{}
	eng := NewEngine(store, reg, nil, testLogger(),
		WithNotifier(notifier),
		WithClock(clock.NewFake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))))

	return &engineFixture{engine: eng, persistence: store, registry: reg, notifier: notifier}
}

func nodeStatus(t *testing.T, execution *models.Execution, nodeID string) models.NodeExecutionStatus {
	t.Helper()

	state, ok := execution.NodeState(nodeID)
	require.True(t, ok, "node %s not found", nodeID)

	return state.Status
}

func TestEngine_LinearRunToCompletion(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-linear",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "fetch", ConnectorID: "fetch", Enabled: true},
			{ID: "store", ConnectorID: "store", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "fetch"},
			{ID: "e2", Source: "fetch", Target: "store"},
		},
	}

	var storeInput map[string]any

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"fetch": succeedWith(map[string]any{"rows": 3}),
		"store": &stubAction{
			run: func(_ context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
				storeInput = cctx.Input

				return &protocol.RunResult{Output: map[string]any{"stored": true}}, nil
			},
		},
	})

	execution, err := fx.engine.Start(t.Context(), "wf-linear", "trig", map[string]any{"event": "order.created"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "fetch"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "store"))
	assert.NotNil(t, execution.FinishedAt)

	// Downstream input is keyed by source node id.
	require.Contains(t, storeInput, "fetch")
	assert.Equal(t, map[string]any{"rows": float64(3)}, storeInput["fetch"])
}

func TestEngine_StartInactiveWorkflow(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-off",
		Status: models.WorkflowStatusInactive,
		Nodes:  []*models.WorkflowNode{{ID: "trig", ConnectorID: "webhook", Enabled: true}},
	}
	fx := newFixture(t, workflow, nil)

	_, err := fx.engine.Start(t.Context(), "wf-off", "trig", nil)
	assert.ErrorIs(t, err, ErrWorkflowInactive)
}

func pausingWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "wf-approval",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "approve", ConnectorID: "approval", Name: "Manager approval", Assignee: "manager@acme.test", Enabled: true},
			{ID: "notify", ConnectorID: "notify", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "approve"},
			{ID: "e2", Source: "approve", Target: "notify"},
		},
	}
}

func approvalAction() protocol.Action {
	return &stubAction{
		run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
			return &protocol.RunResult{Interrupt: &protocol.Interrupt{
				Kind:    models.InterruptKindInput,
				Message: "approval needed",
				Partial: map[string]any{"requested": true},
			}}, nil
		},
	}
}

func TestEngine_PauseResumeCompletes(t *testing.T) {
	fx := newFixture(t, pausingWorkflow(), map[string]protocol.Action{
		"approval": approvalAction(),
		"notify":   succeedWith(map[string]any{"sent": true}),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-approval", "trig", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.Equal(t, models.NodeStatusNeedsInput, nodeStatus(t, execution, "approve"))
	assert.Equal(t, models.NodeStatusPending, nodeStatus(t, execution, "notify"))

	state, _ := execution.NodeState("approve")
	require.NotNil(t, state.Interrupt)
	assert.Equal(t, models.InterruptKindInput, state.Interrupt.Kind)

	// Exactly one notification per pause, addressed to the node assignee.
	require.Len(t, fx.notifier.notifications, 1)
	assert.Equal(t, "manager@acme.test", fx.notifier.notifications[0].Assignee)

	execution, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID: execution.ID,
		NodeID:      "approve",
		MergeData:   map[string]any{"value": "x"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "approve"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "notify"))

	// Resume merged the payload over the interrupt's partial output.
	state, _ = execution.NodeState("approve")
	assert.Equal(t, "x", state.Output["value"])
	assert.Equal(t, true, state.Output["requested"])
	assert.Nil(t, state.Interrupt)

	// No second notification on the resume path.
	assert.Len(t, fx.notifier.notifications, 1)
}

func TestEngine_SecondResumeConflicts(t *testing.T) {
	fx := newFixture(t, pausingWorkflow(), map[string]protocol.Action{
		"approval": approvalAction(),
		"notify":   succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-approval", "trig", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	req := models.ResumeRequest{ExecutionID: execution.ID, NodeID: "approve", MergeData: map[string]any{"ok": true}}

	_, err = fx.engine.Resume(t.Context(), req)
	require.NoError(t, err)

	// A replayed resume loses: the node already consumed its single resume.
	_, err = fx.engine.Resume(t.Context(), req)
	assert.ErrorIs(t, err, ErrResumeConflict)
}

func TestEngine_InvalidResumeKeepsPause(t *testing.T) {
	fx := newFixture(t, pausingWorkflow(), map[string]protocol.Action{
		"approval": approvalAction(),
		"notify":   succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-approval", "trig", nil)
	require.NoError(t, err)

	// An input interrupt rejects a path decision payload.
	_, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID:   execution.ID,
		NodeID:        "approve",
		ChosenPathIDs: []string{"e2"},
	})
	assert.ErrorIs(t, err, ErrInvalidResume)

	// The pause is intact; a valid resume still goes through.
	current, err := fx.engine.Execution(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPaused, current.Status)
	assert.Equal(t, models.NodeStatusNeedsInput, nodeStatus(t, current, "approve"))

	execution, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID: execution.ID,
		NodeID:      "approve",
		MergeData:   map[string]any{"ok": true},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
}

func TestEngine_PathDecisionPrunesUnchosenBranch(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-branch",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "decide", ConnectorID: "decide", Enabled: true},
			{ID: "left", ConnectorID: "left", Enabled: true},
			{ID: "right", ConnectorID: "right", Enabled: true},
			{ID: "after-right", ConnectorID: "right", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "decide"},
			{ID: "e-left", Source: "decide", Target: "left"},
			{ID: "e-right", Source: "decide", Target: "right"},
			{ID: "e3", Source: "right", Target: "after-right"},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"decide": &stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return &protocol.RunResult{Interrupt: &protocol.Interrupt{
					Kind:    models.InterruptKindPathDecision,
					Message: "pick a branch",
				}}, nil
			},
		},
		"left":  succeedWith(map[string]any{"branch": "left"}),
		"right": succeedWith(map[string]any{"branch": "right"}),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-branch", "trig", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	// Candidate paths default to the decision node's outgoing edges.
	state, _ := execution.NodeState("decide")
	require.NotNil(t, state.Interrupt)
	assert.ElementsMatch(t, []string{"e-left", "e-right"}, state.Interrupt.CandidatePaths)

	execution, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID:   execution.ID,
		NodeID:        "decide",
		ChosenPathIDs: []string{"e-left"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "left"))

	// Not-chosen branches collapse to skipped, transitively, and never
	// linger as pending.
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "right"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "after-right"))
}

func TestEngine_UnknownPathIDRejected(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-branch2",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "decide", ConnectorID: "decide", Enabled: true},
			{ID: "left", ConnectorID: "left", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "decide"},
			{ID: "e-left", Source: "decide", Target: "left"},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"decide": &stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return &protocol.RunResult{Interrupt: &protocol.Interrupt{Kind: models.InterruptKindPathDecision}}, nil
			},
		},
		"left": succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-branch2", "trig", nil)
	require.NoError(t, err)

	_, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID:   execution.ID,
		NodeID:        "decide",
		ChosenPathIDs: []string{"e-ghost"},
	})
	assert.ErrorIs(t, err, ErrInvalidResume)
}

func TestEngine_ErrorEdgeHandlesFailure(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-onerror",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "flaky", ConnectorID: "flaky", Enabled: true},
			{ID: "cleanup", ConnectorID: "cleanup", Enabled: true},
			{ID: "happy", ConnectorID: "happy", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "flaky"},
			{ID: "e2", Source: "flaky", Target: "happy"},
			{ID: "e-err", Source: "flaky", Target: "cleanup", OnError: true},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"flaky": &stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return nil, errors.New("upstream 502")
			},
		},
		"cleanup": succeedWith(map[string]any{"cleaned": true}),
		"happy":   succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-onerror", "trig", nil)
	require.NoError(t, err)

	// The error edge consumed the failure, so the run succeeds.
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusFailed, nodeStatus(t, execution, "flaky"))
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "cleanup"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "happy"))

	state, _ := execution.NodeState("flaky")
	assert.Contains(t, state.Error, "upstream 502")
}

func TestEngine_UnhandledFailureFailsExecution(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-fail",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "flaky", ConnectorID: "flaky", Enabled: true},
			{ID: "after", ConnectorID: "after", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "flaky"},
			{ID: "e2", Source: "flaky", Target: "after"},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"flaky": &stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return nil, errors.New("boom")
			},
		},
		"after": succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-fail", "trig", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.FailureReason, "flaky")
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "after"))
}

func TestEngine_CancelPausedExecution(t *testing.T) {
	fx := newFixture(t, pausingWorkflow(), map[string]protocol.Action{
		"approval": approvalAction(),
		"notify":   succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-approval", "trig", nil)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusPaused, execution.Status)

	require.NoError(t, fx.engine.Cancel(t.Context(), execution.ID))

	current, err := fx.engine.Execution(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, current.Status)
	assert.Equal(t, models.FailureReasonCancelled, current.FailureReason)

	// Nothing operates on a finished execution.
	_, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID: execution.ID, NodeID: "approve", MergeData: map[string]any{"ok": true},
	})
	assert.ErrorIs(t, err, ErrExecutionFinished)

	assert.ErrorIs(t, fx.engine.Cancel(t.Context(), execution.ID), ErrExecutionFinished)
}

func TestEngine_CancelDuringRun(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-cancel",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "slow", ConnectorID: "slow", Enabled: true},
			{ID: "after", ConnectorID: "after", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "slow"},
			{ID: "e2", Source: "slow", Target: "after"},
		},
	}

	var eng *Engine

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"slow": &stubAction{
			// Cancellation lands while the node is in flight; the node
			// finishes but the run does not advance past it.
			run: func(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
				require.NoError(t, eng.Cancel(ctx, cctx.ExecutionID))

				return &protocol.RunResult{Output: map[string]any{"done": true}}, nil
			},
		},
		"after": succeedWith(nil),
	})
	eng = fx.engine

	execution, err := fx.engine.Start(t.Context(), "wf-cancel", "trig", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureReasonCancelled, execution.FailureReason)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "slow"))
	assert.Equal(t, models.NodeStatusPending, nodeStatus(t, execution, "after"))
}

func TestEngine_DryRunUsesMock(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-dry",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "charge", ConnectorID: "charge", Enabled: true},
		},
		Edges: []*models.Edge{{ID: "e1", Source: "trig", Target: "charge"}},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"charge": &stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return nil, errors.New("live credentials must not be touched")
			},
			mock: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return &protocol.RunResult{Output: map[string]any{"charged": "simulated"}}, nil
			},
		},
	})

	execution, err := fx.engine.Start(t.Context(), "wf-dry", "trig", nil, DryRun())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)

	state, _ := execution.NodeState("charge")
	assert.Equal(t, "simulated", state.Output["charged"])
}

func TestEngine_DisabledNodeSkipped(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-disabled",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "off", ConnectorID: "off", Enabled: false},
			{ID: "tail", ConnectorID: "tail", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "off"},
			{ID: "e2", Source: "off", Target: "tail"},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"tail": succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-disabled", "trig", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "off"))
	assert.Equal(t, models.NodeStatusSkipped, nodeStatus(t, execution, "tail"))
}

func TestEngine_TracingRecordsErrors(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-traced",
		Status: models.WorkflowStatusInactive,
		Nodes:  []*models.WorkflowNode{{ID: "trig", ConnectorID: "webhook", Enabled: true}},
	}

	store := memory.NewPersistence()
	require.NoError(t, store.WorkflowRepository().SaveWorkflow(t.Context(), workflow))

	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	eng := NewEngine(store, registry.NewRegistry(testLogger()), nil, testLogger(), WithTracer(tracer))

	_, err := eng.Start(t.Context(), "wf-traced", "trig", nil)
	require.ErrorIs(t, err, ErrWorkflowInactive)

	_, err = eng.Resume(t.Context(), models.ResumeRequest{})
	require.ErrorIs(t, err, ErrInvalidResume)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	started := spans[0]
	assert.Equal(t, "engine.start", started.Name())
	assert.Equal(t, codes.Error, started.Status().Code)
	assert.Contains(t, started.Attributes(), attribute.String(otelhelper.WorkflowIDKey, "wf-traced"))

	resumed := spans[1]
	assert.Equal(t, "engine.resume", resumed.Name())
	assert.Equal(t, codes.Error, resumed.Status().Code)

	var names []string
	for _, event := range resumed.Events() {
		names = append(names, event.Name)
	}

	// RecordError attaches the exception event alongside our own marker.
	assert.Contains(t, names, "exception")
	assert.Contains(t, names, "error_occurred")
}

// pendingAwareAction cannot tell from Run alone whether it finished; the
// remote API reports "pending" inside an ordinary response payload.
type pendingAwareAction struct {
	stubAction
}

func (a *pendingAwareAction) HandleInterruptingResponse(raw map[string]any) (*protocol.Interrupt, error) {
	if status, _ := raw["status"].(string); status == "pending" {
		return &protocol.Interrupt{
			Kind:    models.InterruptKindInput,
			Message: "remote operation still in progress",
		}, nil
	}

	return nil, nil
}

func TestEngine_InterruptResponderPausesOnPendingResponse(t *testing.T) {
	workflow := &models.Workflow{
		ID:     "wf-pending",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "trig", ConnectorID: "webhook", Enabled: true},
			{ID: "call", ConnectorID: "telephony", Enabled: true},
			{ID: "tail", ConnectorID: "tail", Enabled: true},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trig", Target: "call"},
			{ID: "e2", Source: "call", Target: "tail"},
		},
	}

	fx := newFixture(t, workflow, map[string]protocol.Action{
		"telephony": &pendingAwareAction{stubAction: stubAction{
			run: func(_ context.Context, _ protocol.ConnectorContext) (*protocol.RunResult, error) {
				return &protocol.RunResult{Output: map[string]any{"status": "pending", "call_id": "c-42"}}, nil
			},
		}},
		"tail": succeedWith(nil),
	})

	execution, err := fx.engine.Start(t.Context(), "wf-pending", "trig", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPaused, execution.Status)
	assert.Equal(t, models.NodeStatusNeedsInput, nodeStatus(t, execution, "call"))

	// The raw output survives as the interrupt's partial result.
	state, _ := execution.NodeState("call")
	require.NotNil(t, state.Interrupt)
	assert.Equal(t, "c-42", state.Interrupt.Partial["call_id"])

	execution, err = fx.engine.Resume(t.Context(), models.ResumeRequest{
		ExecutionID: execution.ID,
		NodeID:      "call",
		MergeData:   map[string]any{"status": "completed"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	assert.Equal(t, models.NodeStatusSuccess, nodeStatus(t, execution, "tail"))

	state, _ = execution.NodeState("call")
	assert.Equal(t, "completed", state.Output["status"])
	assert.Equal(t, "c-42", state.Output["call_id"])
}
