package models

import "time"

// FailureCode classifies why a queued event did not run.
type FailureCode int

const (
	FailureNone             FailureCode = 0
	FailureWorkflowInactive FailureCode = 1
	FailureMissingData      FailureCode = 2
	FailureFatalError       FailureCode = 3
)

func (c FailureCode) Message() string {
	switch c {
	case FailureNone:
		return ""
	case FailureWorkflowInactive:
		return "Workflow was not active or its conditions no longer matched"
	case FailureMissingData:
		return "A required data item could not be found"
	case FailureFatalError:
		return "The run was interrupted before it completed"
	default:
		return "Unknown failure"
	}
}

// QueuedEvent is a deferred workflow run with a compressed data layer keyed
// by data type name.
type QueuedEvent struct {
	ID          string            `json:"id"`
	WorkflowID  string            `json:"workflow_id"`
	DueDate     time.Time         `json:"due_date"`
	CreatedAt   time.Time         `json:"created_at"`
	Failed      bool              `json:"failed"`
	FailureCode FailureCode       `json:"failure_code"`
	DataItems   map[string]string `json:"data_items"`
}

// FailureMessage translates the failure code for display.
func (q *QueuedEvent) FailureMessage() string {
	if !q.Failed {
		return ""
	}

	return q.FailureCode.Message()
}

// HasItem reports whether the snapshot holds token for dataType.
func (q *QueuedEvent) HasItem(dataType, token string) bool {
	return q.DataItems[dataType] == token
}
