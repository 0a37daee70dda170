package types

import "time"

// JobStatus is the stage a job application is in. Any status may follow any
// other; no workflow is enforced.
type JobStatus string

const (
	StatusApplied   JobStatus = "applied"
	StatusInterview JobStatus = "interview"
	StatusOffer     JobStatus = "offer"
	StatusRejected  JobStatus = "rejected"
	StatusWithdrawn JobStatus = "withdrawn"
)

// JobStatuses lists every valid status in display order.
var JobStatuses = []JobStatus{
	StatusApplied,
	StatusInterview,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	for _, status := range JobStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// JobApplication is a single application tracked by a user.
// Every application is owned by exactly one user and is only visible to them.
type JobApplication struct {
	// ID is the unique identifier of the application.
	ID int `json:"id" db:"id"`

	// UserID identifies the owning user. It never changes after creation.
	UserID int `json:"user_id" db:"user_id"`

	// CompanyName and JobTitle are required.
	CompanyName string `json:"company_name" db:"company_name"`
	JobTitle    string `json:"job_title" db:"job_title"`

	JobURL         *string `json:"job_url" db:"job_url"`
	Location       *string `json:"location" db:"location"`
	SalaryRange    *string `json:"salary_range" db:"salary_range"`
	JobDescription *string `json:"job_description" db:"job_description"`
	Requirements   *string `json:"requirements" db:"requirements"`
	Notes          *string `json:"notes" db:"notes"`
	ContactPerson  *string `json:"contact_person" db:"contact_person"`
	ContactEmail   *string `json:"contact_email" db:"contact_email"`

	// ApplicationDate defaults to the creation date when left empty on create.
	ApplicationDate Date `json:"application_date" db:"application_date"`

	// FollowUpDate is an optional reminder date.
	FollowUpDate Date `json:"follow_up_date" db:"follow_up_date"`

	Status JobStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// JobFilter narrows a job listing. Empty fields impose no restriction.
type JobFilter struct {
	// Status must match exactly.
	Status JobStatus

	// Company is matched as a case-insensitive substring of the company name.
	Company string
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// JobStats holds per-status counts for a user. Every key is always present.
type JobStats struct {
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Interview int `json:"interview"`
	Offer     int `json:"offer"`
	Rejected  int `json:"rejected"`
	Withdrawn int `json:"withdrawn"`
}
