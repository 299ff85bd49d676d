// Package engine drives workflow executions forward: it advances node graphs
// to completion, freezes runs that need external input, and merges resume
// payloads back in to unpause them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tideflow-io/tideflow/pkg/clock"
	"github.com/tideflow-io/tideflow/pkg/eventbus"
	"github.com/tideflow-io/tideflow/pkg/events"
	"github.com/tideflow-io/tideflow/pkg/models"
	"github.com/tideflow-io/tideflow/pkg/notify"
	"github.com/tideflow-io/tideflow/pkg/otelhelper"
	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ConnectionResolver turns a trigger/node connection reference into the
// credential handle handed to connectors. Credential management itself lives
// outside the engine.
type ConnectionResolver interface {
	Resolve(ctx context.Context, ref string) (*models.Connection, error)
}

// Engine is the execution continuation state machine. All mutations of one
// execution are serialized through a per-execution lock; the lock is never
// held across a connector call.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	notifier    notify.Notifier
	connections ConnectionResolver
	clock       clock.Clock
	logger      *slog.Logger
	httpClient  *http.Client
	tracer      trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures optional engine collaborators.
type Option func(*Engine)

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithConnectionResolver(r ConnectionResolver) Option {
	return func(e *Engine) { e.connections = r }
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		persistence: p,
		registry:    reg,
		publisher:   publisher,
		notifier:    notify.Discard{},
		clock:       clock.System{},
		logger:      logger.With("module", "engine"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		tracer:      noop.NewTracerProvider().Tracer("tideflow"),
		locks:       make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) executionLock(executionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[executionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[executionID] = lock
	}

	return lock
}

// StartOption configures one execution.
type StartOption func(*models.Execution)

// DryRun makes every node call the connector's MockRun instead of Run.
func DryRun() StartOption {
	return func(ex *models.Execution) { ex.DryRun = true }
}

// Start creates an execution for the workflow, seeds the trigger node's
// output with the trigger data, and advances until the run completes, pauses,
// or fails.
func (e *Engine) Start(
	ctx context.Context,
	workflowID string,
	triggerNodeID string,
	triggerData map[string]any,
	opts ...StartOption,
) (*models.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.start",
		trace.WithAttributes(attribute.String(otelhelper.WorkflowIDKey, workflowID)))
	defer span.End()

	workflow, err := e.persistence.WorkflowRepository().WorkflowByID(ctx, workflowID)
	if err != nil {
		err = fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		err := fmt.Errorf("cannot start workflow %s: %w", workflowID, ErrWorkflowInactive)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if triggerNodeID == "" {
		triggerNodeID = rootNodeID(workflow)
	}

	if _, ok := workflow.NodeByID(triggerNodeID); !ok {
		err := fmt.Errorf("trigger node %s: %w", triggerNodeID, persistence.ErrNodeNotFound)
		otelhelper.SetError(span, err)

		return nil, err
	}

	now := e.clock.Now()
	execution := &models.Execution{
		ID:         "exec-" + uuid.New().String()[:8],
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, opt := range opts {
		opt(execution)
	}

	for _, node := range workflow.Nodes {
		state := &models.NodeState{ID: node.ID, Status: models.NodeStatusPending}

		switch {
		case node.ID == triggerNodeID:
			state.Status = models.NodeStatusSuccess
			state.Output = triggerData
			state.StartedAt = &now
			state.FinishedAt = &now
		case !node.Enabled:
			state.Status = models.NodeStatusSkipped
		}

		execution.Nodes = append(execution.Nodes, state)
	}

	if err := e.commit(ctx, execution); err != nil {
		return nil, err
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:   e.baseEvent(events.ExecutionStartedEvent, workflowID),
		ExecutionID: execution.ID,
	})

	e.logger.InfoContext(ctx, "Started execution",
		"execution_id", execution.ID,
		"workflow_id", workflowID,
		"trigger_node_id", triggerNodeID,
		"dry_run", execution.DryRun)

	return e.Advance(ctx, execution.ID)
}

// Cancel requests cooperative cancellation. An in-flight connector call is
// allowed to finish; the state machine refuses to advance past it and marks
// the execution failed with reason CANCELLED.
func (e *Engine) Cancel(ctx context.Context, executionID string) error {
	lock := e.executionLock(executionID)
	lock.Lock()
	defer lock.Unlock()

	execution, err := e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return fmt.Errorf("cannot cancel %s: %w", executionID, ErrExecutionFinished)
	}

	execution.CancelRequested = true

	// A paused run has nothing in flight; finish it right away.
	if execution.Status == models.ExecutionStatusPaused {
		return e.finishCancelled(ctx, execution)
	}

	return e.commit(ctx, execution)
}

// Execution returns the stored execution record.
func (e *Engine) Execution(ctx context.Context, executionID string) (*models.Execution, error) {
	return e.persistence.ExecutionRepository().ExecutionByID(ctx, executionID)
}

func (e *Engine) finishCancelled(ctx context.Context, execution *models.Execution) error {
	execution.Status = models.ExecutionStatusFailed
	execution.FailureReason = models.FailureReasonCancelled
	now := e.clock.Now()
	execution.FinishedAt = &now

	if err := e.commit(ctx, execution); err != nil {
		return err
	}

	e.publish(ctx, execution.ID, events.ExecutionCancelled{
		BaseEvent:   e.baseEvent(events.ExecutionCancelledEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
	})

	return nil
}

// commit bumps the optimistic version and persists. Callers hold the
// execution lock.
func (e *Engine) commit(ctx context.Context, execution *models.Execution) error {
	execution.Version++
	execution.UpdatedAt = e.clock.Now()

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  e.clock.Now(),
		WorkflowID: workflowID,
	}
}

// rootNodeID picks the first node without incoming edges, the conventional
// trigger position for manual runs.
func rootNodeID(workflow *models.Workflow) string {
	for _, node := range workflow.Nodes {
		if len(workflow.IncomingEdges(node.ID)) == 0 {
			return node.ID
		}
	}

	if len(workflow.Nodes) > 0 {
		return workflow.Nodes[0].ID
	}

	return ""
}
