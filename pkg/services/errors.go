// Package services provides the write-side operations on workflows and
// trigger instances, with the validation the storage layer does not enforce.
package services

import (
	"errors"
	"fmt"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrNodesRequired        = errors.New("workflow must have at least one enabled node")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrDuplicateEdgeID      = errors.New("duplicate edge id")
	ErrUnknownEdgeEndpoint  = errors.New("edge references unknown node")
	ErrNoRootNode           = errors.New("workflow has no node without incoming edges")
	ErrInvalidTriggerConfig = errors.New("invalid trigger configuration")
)

// Business logic conflicts (409 Conflict).
var (
	// ErrWorkflowActive rejects graph mutations while triggers are armed.
	ErrWorkflowActive = errors.New("cannot modify graph of an active workflow")

	// ErrKindImmutable rejects changing a trigger instance's kind after
	// creation.
	ErrKindImmutable = errors.New("trigger kind is immutable")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrDuplicateEdgeID) ||
		errors.Is(err, ErrUnknownEdgeEndpoint) ||
		errors.Is(err, ErrNoRootNode) ||
		errors.Is(err, ErrInvalidTriggerConfig)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowActive) ||
		errors.Is(err, ErrKindImmutable)
}
