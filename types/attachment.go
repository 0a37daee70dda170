package types

import "time"

// JobAttachment is a file (resume, cover letter, offer letter) stored in
// object storage and linked to a job application.
type JobAttachment struct {
	ID          int       `json:"id" db:"id"`
	JobID       int       `json:"job_id" db:"job_id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	ObjectKey   string    `json:"-" db:"object_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
