package engine

import "errors"

var (
	// ErrResumeConflict rejects a resume aimed at a node that is not
	// waiting for input. Duplicate UI submissions and replayed webhooks
	// surface as conflicts instead of silently double-advancing.
	ErrResumeConflict = errors.New("node is not waiting for input")

	// ErrInvalidResume rejects a resume whose payload does not fit the
	// pending interrupt (wrong shape, unknown path ids). The node keeps
	// waiting; a malformed request must not consume the single resume.
	ErrInvalidResume = errors.New("resume payload does not match pending interrupt")

	// ErrExecutionFinished rejects operations on terminal executions.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrWorkflowInactive rejects starts against inactive workflows.
	ErrWorkflowInactive = errors.New("workflow is not active")
)
