package models

import "time"

// NodeExecutionStatus is the per-step state within one execution.
type NodeExecutionStatus string

const (
	NodeStatusPending    NodeExecutionStatus = "pending"
	NodeStatusRunning    NodeExecutionStatus = "running"
	NodeStatusNeedsInput NodeExecutionStatus = "needs_input"
	NodeStatusSuccess    NodeExecutionStatus = "success"
	NodeStatusFailed     NodeExecutionStatus = "failed"
	NodeStatusSkipped    NodeExecutionStatus = "skipped"
)

// InterruptKind classifies why a node paused.
type InterruptKind string

const (
	InterruptKindInput        InterruptKind = "input"         // waiting for merge data
	InterruptKindPathDecision InterruptKind = "path_decision" // waiting for a chosen path subset
)

// PendingInterrupt captures what a paused node is waiting for. Partial holds
// output already produced before the interrupt (side effects of the partial
// run are not replayed on resume).
type PendingInterrupt struct {
	Kind           InterruptKind  `json:"kind"`
	Message        string         `json:"message,omitempty"`
	Assignee       string         `json:"assignee,omitempty"`
	CandidatePaths []string       `json:"candidate_paths,omitempty"`
	Partial        map[string]any `json:"partial,omitempty"`
}

// NodeState is one step's state within an Execution. It is exclusively owned
// by its parent execution and keyed by the workflow-graph node id.
type NodeState struct {
	ID         string              `json:"id"`
	Status     NodeExecutionStatus `json:"execution_status"`
	Output     map[string]any      `json:"output,omitempty"`
	Error      string              `json:"error,omitempty"`
	Interrupt  *PendingInterrupt   `json:"interrupt,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}
