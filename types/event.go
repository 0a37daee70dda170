package types

import "time"

// JobEventType names a job application lifecycle transition.
type JobEventType string

const (
	JobCreated JobEventType = "job_application.created"
	JobUpdated JobEventType = "job_application.updated"
	JobDeleted JobEventType = "job_application.deleted"
)

// JobEvent is published to the event bus after a successful mutation.
type JobEvent struct {
	Type       JobEventType `json:"type"`
	UserID     int          `json:"user_id"`
	JobID      int          `json:"job_id"`
	Status     JobStatus    `json:"status"`
	OccurredAt time.Time    `json:"occurred_at"`
}
