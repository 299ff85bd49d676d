// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTriggerInstanceNotFound indicates a trigger instance was not found.
	ErrTriggerInstanceNotFound = errors.New("trigger instance not found")

	// ErrExecutionNotFound indicates an execution was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNodeNotFound indicates a node was not found within an execution.
	ErrNodeNotFound = errors.New("node not found")

	// ErrWatermarkNotFound indicates no watermark exists yet for a trigger
	// instance (first poll).
	ErrWatermarkNotFound = errors.New("watermark not found")

	// ErrVersionConflict indicates an optimistic-concurrency write lost the
	// race against a concurrent mutation.
	ErrVersionConflict = errors.New("execution version conflict")
)

// ExecutionError wraps execution-related storage errors with context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "ByID", "Save")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// TriggerInstanceError wraps trigger-instance storage errors with context.
type TriggerInstanceError struct {
	Op         string
	InstanceID string
	Err        error
}

func (e *TriggerInstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for trigger instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *TriggerInstanceError) Unwrap() error {
	return e.Err
}

func (e *TriggerInstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTriggerInstanceNotFound checks if an error indicates a trigger instance
// was not found.
func IsTriggerInstanceNotFound(err error) bool {
	return errors.Is(err, ErrTriggerInstanceNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsWatermarkNotFound checks if an error indicates a missing watermark.
func IsWatermarkNotFound(err error) bool {
	return errors.Is(err, ErrWatermarkNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic-concurrency
// conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
