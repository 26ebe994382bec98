// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrQueuedEventNotFound indicates a queued event was not found.
	ErrQueuedEventNotFound = errors.New("queued event not found")

	// ErrLogNotFound indicates a run log was not found.
	ErrLogNotFound = errors.New("log not found")

	// ErrInvalidDataItem indicates a data item name that cannot be stored.
	ErrInvalidDataItem = errors.New("invalid data item")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "Get", "Save", "Delete")
	WorkflowID string
	Err        error
	Message    string
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// QueueError wraps queue errors with the event involved.
type QueueError struct {
	Op      string
	EventID string
	Err     error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("%s operation failed for queued event %s: %v", e.Op, e.EventID, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

func (e *QueueError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsQueuedEventNotFound(err error) bool {
	return errors.Is(err, ErrQueuedEventNotFound)
}

func IsLogNotFound(err error) bool {
	return errors.Is(err, ErrLogNotFound)
}
