package models

import "time"

// Log records one completed or attempted workflow run.
type Log struct {
	ID            string            `json:"id"`
	WorkflowID    string            `json:"workflow_id"`
	DataItems     map[string]string `json:"data_items"`
	Date          time.Time         `json:"date"`
	QueuedEventID string            `json:"queued_event_id,omitempty"`
	Notes         []string          `json:"notes,omitempty"`
	HasErrors     bool              `json:"has_errors"`
	Failed        bool              `json:"failed"`
	FailureCode   FailureCode       `json:"failure_code,omitempty"`
	Manual        bool              `json:"manual,omitempty"`
	OpenedAt      *time.Time        `json:"opened_at,omitempty"`
	ClickedAt     *time.Time        `json:"clicked_at,omitempty"`
}

func (l *Log) AddNote(note string) {
	l.Notes = append(l.Notes, note)
}

// MarkOpened records the first open; later opens are ignored.
func (l *Log) MarkOpened(at time.Time) {
	if l.OpenedAt == nil {
		l.OpenedAt = &at
	}
}

// MarkClicked records the first click. A click implies an open.
func (l *Log) MarkClicked(at time.Time) {
	l.MarkOpened(at)

	if l.ClickedAt == nil {
		l.ClickedAt = &at
	}
}
