package models

import (
	"time"
)

// ExecutionStatus is the lifecycle state of one workflow run.
//
// Allowed transitions: RUNNING -> {PAUSED, SUCCESS, FAILED},
// PAUSED -> {RUNNING, FAILED}. SUCCESS and FAILED are terminal and an
// execution takes exactly one terminal transition.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusPaused  ExecutionStatus = "paused"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// FailureReasonCancelled marks executions failed by cooperative cancellation.
const FailureReasonCancelled = "CANCELLED"

// Execution is one run of a workflow graph. Terminal executions are archived,
// never hard-deleted, so completed node outputs stay available for debugging.
type Execution struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Status     ExecutionStatus `json:"status"`
	Nodes      []*NodeState    `json:"nodes"`

	// Version guards racing resumes: every committed mutation increments
	// it, and writers reject stale reads.
	Version int64 `json:"version"`

	// DryRun executions call the connector's MockRun instead of Run.
	DryRun bool `json:"dry_run,omitempty"`

	// CancelRequested makes Advance refuse further progress. The in-flight
	// connector call is allowed to finish.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the execution reached a terminal status.
func (e *Execution) Terminal() bool {
	return e.Status == ExecutionStatusSuccess || e.Status == ExecutionStatusFailed
}

// CanTransition checks the status state machine.
func (e *Execution) CanTransition(to ExecutionStatus) bool {
	switch e.Status {
	case ExecutionStatusRunning:
		return to == ExecutionStatusPaused || to == ExecutionStatusSuccess || to == ExecutionStatusFailed
	case ExecutionStatusPaused:
		return to == ExecutionStatusRunning || to == ExecutionStatusFailed
	default:
		return false
	}
}

// NodeState returns the state record for the given workflow-graph node id.
func (e *Execution) NodeState(nodeID string) (*NodeState, bool) {
	for _, n := range e.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}

	return nil, false
}
