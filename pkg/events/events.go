// Package events defines event types and structures for trigger and
// execution lifecycle notifications.
package events

import (
	"time"

	"github.com/tideflow-io/tideflow/pkg/models"
)

type EventType string

// Topics.
const Topic = "tideflow.events"                    // Execution and trigger lifecycle events
const NotificationTopic = "tideflow.notifications" // Pause notifications for assignees

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger lifecycle events.
	TriggerFiredEvent EventType = "trigger.fired"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Node events.
	NodeCompletionEvent EventType = "node.completion"

	// Notification side channel.
	NotificationRequestedEvent EventType = "notification.requested"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TriggerFired signals that a trigger instance decided to fire and an
// execution should be seeded with the trigger data.
type TriggerFired struct {
	BaseEvent

	TriggerInstanceID string             `json:"trigger_instance_id"`
	Kind              models.TriggerKind `json:"kind"`
	TriggerData       map[string]any     `json:"trigger_data,omitempty"`
}

func (t TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// ExecutionPaused is emitted once per pause transition, when a node reports
// it needs external input.
type ExecutionPaused struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// NodeCompletion represents the completion of a node execution.
type NodeCompletion struct {
	BaseEvent

	ExecutionID string                     `json:"execution_id"`
	NodeID      string                     `json:"node_id"`
	Status      models.NodeExecutionStatus `json:"status"`
	Output      map[string]any             `json:"output,omitempty"`
	Error       string                     `json:"error,omitempty"`
	DurationMs  int64                      `json:"duration_ms"`
}

func (n NodeCompletion) GetType() EventType {
	return NodeCompletionEvent
}

// NotificationRequested is the outbound pause notification: exactly one per
// pause-with-notification transition, never re-emitted on failed resumes.
type NotificationRequested struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Assignee    string `json:"assignee"`
	Message     string `json:"message"`
}

func (n NotificationRequested) GetType() EventType {
	return NotificationRequestedEvent
}
