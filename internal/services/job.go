package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/store"
	"github.com/jobtracker/apiserver/types"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit inside an int32 offset.
	MaxPage = math.MaxInt32 / MaxLimit
)

const msgJobNotFound = "job application not found"

// JobRepository defines persistence operations for job applications. Every
// method is scoped to the owning user.
type JobRepository interface {
	List(ctx context.Context, userID int, filter types.JobFilter, offset, limit int) ([]types.JobApplication, int, error)
	Get(ctx context.Context, userID, id int) (types.JobApplication, error)
	Create(ctx context.Context, job types.JobApplication) (types.JobApplication, error)
	Update(ctx context.Context, job types.JobApplication) (types.JobApplication, error)
	// Delete also returns the object keys of the attachments removed with
	// the job.
	Delete(ctx context.Context, userID, id int) (types.JobApplication, []string, error)
	Stats(ctx context.Context, userID int) (types.JobStats, error)
}

// EventPublisher receives an event after each successful mutation.
type EventPublisher interface {
	Publish(ctx context.Context, event types.JobEvent) error
}

// AttachmentPurger removes the stored objects of a deleted job.
type AttachmentPurger interface {
	RemoveObjects(ctx context.Context, keys []string)
}

// JobInput carries the client-supplied fields of a job application. Blank
// strings mean "not set".
type JobInput struct {
	CompanyName     string `json:"company_name"`
	JobTitle        string `json:"job_title"`
	JobURL          string `json:"job_url"`
	Location        string `json:"location"`
	SalaryRange     string `json:"salary_range"`
	JobDescription  string `json:"job_description"`
	Requirements    string `json:"requirements"`
	Notes           string `json:"notes"`
	ContactPerson   string `json:"contact_person"`
	ContactEmail    string `json:"contact_email"`
	ApplicationDate string `json:"application_date"`
	FollowUpDate    string `json:"follow_up_date"`
	Status          string `json:"status"`
}

// JobPage is one page of a listing.
type JobPage struct {
	Jobs       []types.JobApplication `json:"jobs"`
	Pagination types.Pagination       `json:"pagination"`
}

// JobOption configures a JobService.
type JobOption func(*JobService)

// WithEventPublisher publishes lifecycle events after successful mutations.
func WithEventPublisher(p EventPublisher) JobOption {
	return func(s *JobService) { s.events = p }
}

// WithAttachmentPurger removes attachment objects when a job is deleted.
func WithAttachmentPurger(p AttachmentPurger) JobOption {
	return func(s *JobService) { s.purger = p }
}

// JobService encapsulates job application use-cases.
type JobService struct {
	repo   JobRepository
	events EventPublisher
	purger AttachmentPurger
	now    func() time.Time
}

func NewJobService(repo JobRepository, opts ...JobOption) *JobService {
	s := &JobService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SanitizePage replaces a non-positive page or limit with the default and
// caps page at MaxPage and limit at MaxLimit.
func SanitizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit < 1 || total < 1 {
		return 0
	}
	return (total + limit - 1) / limit
}

// List returns one page of the user's jobs, newest first. An unknown status
// filter matches nothing.
func (s *JobService) List(ctx context.Context, userID int, filter types.JobFilter, page, limit int) (JobPage, error) {
	filter.Company = strings.TrimSpace(filter.Company)

	page, limit = SanitizePage(page, limit)
	jobs, total, err := s.repo.List(ctx, userID, filter, (page-1)*limit, limit)
	if err != nil {
		return JobPage{}, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []types.JobApplication{}
	}

	return JobPage{
		Jobs: jobs,
		Pagination: types.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: TotalPages(total, limit),
		},
	}, nil
}

func (s *JobService) Get(ctx context.Context, userID, id int) (types.JobApplication, error) {
	job, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return types.JobApplication{}, mapJobErr("get job", err)
	}
	return job, nil
}

func (s *JobService) Create(ctx context.Context, userID int, input JobInput) (types.JobApplication, error) {
	job, err := s.buildJob(userID, input)
	if err != nil {
		return types.JobApplication{}, err
	}
	if job.ApplicationDate.IsZero() {
		job.ApplicationDate = types.DateOf(s.now())
	}

	created, err := s.repo.Create(ctx, job)
	if err != nil {
		return types.JobApplication{}, fmt.Errorf("create job: %w", err)
	}
	s.publish(ctx, types.JobCreated, created)
	return created, nil
}

// Update replaces every field of the job. Fields left blank are cleared.
func (s *JobService) Update(ctx context.Context, userID, id int, input JobInput) (types.JobApplication, error) {
	job, err := s.buildJob(userID, input)
	if err != nil {
		return types.JobApplication{}, err
	}
	job.ID = id

	updated, err := s.repo.Update(ctx, job)
	if err != nil {
		return types.JobApplication{}, mapJobErr("update job", err)
	}
	s.publish(ctx, types.JobUpdated, updated)
	return updated, nil
}

// Delete removes the job and returns it as it was. Its attachment objects
// are removed on a best-effort basis once the row is gone.
func (s *JobService) Delete(ctx context.Context, userID, id int) (types.JobApplication, error) {
	deleted, keys, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return types.JobApplication{}, mapJobErr("delete job", err)
	}

	if s.purger != nil && len(keys) > 0 {
		s.purger.RemoveObjects(ctx, keys)
	}
	s.publish(ctx, types.JobDeleted, deleted)
	return deleted, nil
}

func (s *JobService) Stats(ctx context.Context, userID int) (types.JobStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return types.JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

func (s *JobService) buildJob(userID int, input JobInput) (types.JobApplication, error) {
	company := strings.TrimSpace(input.CompanyName)
	title := strings.TrimSpace(input.JobTitle)
	if company == "" || title == "" {
		return types.JobApplication{}, validationError("company name and job title are required")
	}

	status := types.JobStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if status == "" {
		status = types.StatusApplied
	}
	if !status.Valid() {
		return types.JobApplication{}, invalidStatusError(status)
	}

	if err := checkJobLengths(input); err != nil {
		return types.JobApplication{}, err
	}

	applicationDate, err := types.ParseDate(input.ApplicationDate)
	if err != nil {
		return types.JobApplication{}, validationError("invalid application_date, expected YYYY-MM-DD")
	}
	followUpDate, err := types.ParseDate(input.FollowUpDate)
	if err != nil {
		return types.JobApplication{}, validationError("invalid follow_up_date, expected YYYY-MM-DD")
	}

	return types.JobApplication{
		UserID:          userID,
		CompanyName:     company,
		JobTitle:        title,
		JobURL:          optional(input.JobURL),
		Location:        optional(input.Location),
		SalaryRange:     optional(input.SalaryRange),
		JobDescription:  optional(input.JobDescription),
		Requirements:    optional(input.Requirements),
		Notes:           optional(input.Notes),
		ContactPerson:   optional(input.ContactPerson),
		ContactEmail:    optional(input.ContactEmail),
		ApplicationDate: applicationDate,
		FollowUpDate:    followUpDate,
		Status:          status,
	}, nil
}

// Column widths of job_applications.
const (
	maxNameLength   = 255
	maxSalaryLength = 100
)

func checkJobLengths(input JobInput) error {
	fields := []struct {
		name  string
		value string
		limit int
	}{
		{"company_name", input.CompanyName, maxNameLength},
		{"job_title", input.JobTitle, maxNameLength},
		{"location", input.Location, maxNameLength},
		{"salary_range", input.SalaryRange, maxSalaryLength},
		{"contact_person", input.ContactPerson, maxNameLength},
		{"contact_email", input.ContactEmail, maxNameLength},
	}
	for _, f := range fields {
		if err := checkLength(f.name, strings.TrimSpace(f.value), f.limit); err != nil {
			return err
		}
	}
	return nil
}

func (s *JobService) publish(ctx context.Context, eventType types.JobEventType, job types.JobApplication) {
	if s.events == nil {
		return
	}
	event := types.JobEvent{
		Type:       eventType,
		UserID:     job.UserID,
		JobID:      job.ID,
		Status:     job.Status,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logging.FromContext(ctx).Warn("publish job event failed", "type", eventType, "job_id", job.ID, "error", err)
	}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func invalidStatusError(status types.JobStatus) error {
	return validationError("invalid status %q, must be one of applied, interview, offer, rejected, withdrawn", status)
}

func mapJobErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(msgJobNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
