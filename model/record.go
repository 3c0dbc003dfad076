package model

import "time"

// ActionRecord status values. A record is created as scheduled at dispatch
// time; the delivery side moves it to completed or failed asynchronously.
const (
	RecordStatusScheduled = "scheduled"
	RecordStatusCompleted = "completed"
	RecordStatusFailed    = "failed"
)

// ActionRecord is the audit row created for every actually-dispatched action.
// Skipped dispatches (idempotency hits) create no record.
type ActionRecord struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	WorkflowID  string    `json:"workflow_id"`
	ActionID    string    `json:"action_id"`
	Channel     Channel   `json:"channel"`
	TemplateRef string    `json:"template"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Automated   bool      `json:"automated"`
}
