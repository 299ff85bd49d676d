// Package protocol defines the narrow contract every connector implements so
// the engine can drive hundreds of unrelated integrations without knowing
// their internals.
package protocol

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tideflow-io/tideflow/pkg/models"
)

// ConnectorContext is the bundle a connector receives on every invocation:
// step config, upstream outputs, the credential handle, and shared helpers.
type ConnectorContext struct {
	ExecutionID string
	WorkflowID  string
	NodeID      string

	Config map[string]any
	// Input holds the merged outputs of the node's upstream dependencies.
	Input map[string]any

	Connection *models.Connection
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Interrupt signals that a run cannot complete synchronously and the node
// must wait for external input.
type Interrupt struct {
	Kind     models.InterruptKind
	Message  string
	Assignee string
	// CandidatePaths lists the downstream path ids a decision node offers.
	// Left empty, the engine derives them from the node's outgoing edges.
	CandidatePaths []string
	// Partial carries output produced before the interrupt. Side effects
	// behind it are not replayed on resume.
	Partial map[string]any
}

// RunResult is the outcome of an action run: either Output (the node
// completed) or Interrupt (the node needs input). Exactly one is set.
type RunResult struct {
	Output    map[string]any
	Interrupt *Interrupt
}

// Action is one executable connector capability.
type Action interface {
	// Run performs the action against the live integration. Blocking I/O
	// must honor ctx and enforce its own per-call timeout; the engine
	// never holds execution state locks across Run.
	Run(ctx context.Context, cctx ConnectorContext) (*RunResult, error)

	// MockRun produces a representative result without touching live
	// credentials, used for dry-run executions.
	MockRun(ctx context.Context, cctx ConnectorContext) (*RunResult, error)
}

// InterruptResponder is implemented by actions whose raw run response must be
// inspected to decide whether the run is interrupting.
type InterruptResponder interface {
	HandleInterruptingResponse(raw map[string]any) (*Interrupt, error)
}

// TimestampExtractor pulls the event timestamp in millis from one poll event.
// A nil return means the event cannot be deduplicated.
type TimestampExtractor func(event map[string]any) *int64

// PollTrigger fetches candidate events from the integration.
type PollTrigger interface {
	Poll(ctx context.Context, cctx ConnectorContext) ([]map[string]any, error)
	ExtractTimestamp(event map[string]any) *int64
}

// WebhookTrigger authenticates and classifies inbound webhook payloads.
type WebhookTrigger interface {
	// Verify checks the payload's authenticity (typically an HMAC
	// signature over the raw body).
	Verify(body []byte, headers map[string]string) bool

	// Classify extracts the event type from the payload.
	Classify(body []byte) (string, error)

	// MatchesIdentifier checks whether the payload belongs to the tenant
	// identified by the connection metadata.
	MatchesIdentifier(body []byte, connectionMetadata map[string]any) bool
}

// ActionFactory creates action instances and describes their config schema.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
	Schema() map[string]any
}

// PollTriggerFactory creates poll trigger instances.
type PollTriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (PollTrigger, error)
	ID() string
	Schema() map[string]any
}

// WebhookTriggerFactory creates webhook trigger instances.
type WebhookTriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (WebhookTrigger, error)
	ID() string
	Schema() map[string]any
}
