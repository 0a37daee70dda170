// Package storetest provides in-memory repositories with the same behavior
// as the Postgres ones, for tests that exercise services and handlers.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobtracker/apiserver/internal/store"
	"github.com/jobtracker/apiserver/types"
)

// Store holds users, job applications and attachments in memory. Deleting a
// job cascades to its attachments.
type Store struct {
	mu          sync.Mutex
	err         error
	users       map[int]types.User
	jobs        map[int]types.JobApplication
	attachments map[int]types.JobAttachment
	nextUser    int
	nextJob     int
	nextAttach  int
}

func New() *Store {
	return &Store{
		users:       make(map[int]types.User),
		jobs:        make(map[int]types.JobApplication),
		attachments: make(map[int]types.JobAttachment),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) Users() *Users             { return &Users{s: s} }
func (s *Store) Jobs() *Jobs               { return &Jobs{s: s} }
func (s *Store) Attachments() *Attachments { return &Attachments{s: s} }

// Users mirrors store.UserRepository.
type Users struct{ s *Store }

func (u *Users) GetByID(_ context.Context, id int) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.err != nil {
		return types.User{}, u.s.err
	}
	user, ok := u.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.err != nil {
		return types.User{}, u.s.err
	}
	for _, user := range u.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.err != nil {
		return false, u.s.err
	}
	return u.s.userTaken(email, username), nil
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if u.s.err != nil {
		return types.User{}, u.s.err
	}
	if u.s.userTaken(user.Email, user.Username) {
		return types.User{}, store.ErrConflict
	}
	u.s.nextUser++
	now := time.Now().UTC()
	user.ID = u.s.nextUser
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = user
	return user, nil
}

// Delete removes a user and everything they own.
func (u *Users) Delete(_ context.Context, id int) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(u.s.users, id)
	for jobID, job := range u.s.jobs {
		if job.UserID == id {
			u.s.deleteJobLocked(jobID)
		}
	}
	return nil
}

func (s *Store) userTaken(email, username string) bool {
	for _, user := range s.users {
		if user.Email == email || user.Username == username {
			return true
		}
	}
	return false
}

// Jobs mirrors store.JobRepository.
type Jobs struct{ s *Store }

func (j *Jobs) List(_ context.Context, userID int, filter types.JobFilter, offset, limit int) ([]types.JobApplication, int, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return nil, 0, j.s.err
	}

	company := strings.ToLower(strings.TrimSpace(filter.Company))
	matched := make([]types.JobApplication, 0)
	for _, job := range j.s.jobs {
		if job.UserID != userID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if company != "" && !strings.Contains(strings.ToLower(job.CompanyName), company) {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(a, b int) bool {
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.After(matched[b].CreatedAt)
		}
		return matched[a].ID > matched[b].ID
	})

	total := len(matched)
	if offset >= total {
		return []types.JobApplication{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (j *Jobs) Get(_ context.Context, userID, id int) (types.JobApplication, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return types.JobApplication{}, j.s.err
	}
	job, ok := j.s.jobs[id]
	if !ok || job.UserID != userID {
		return types.JobApplication{}, store.ErrNotFound
	}
	return job, nil
}

func (j *Jobs) Create(_ context.Context, job types.JobApplication) (types.JobApplication, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return types.JobApplication{}, j.s.err
	}
	j.s.nextJob++
	now := time.Now().UTC()
	job.ID = j.s.nextJob
	job.CreatedAt = now
	job.UpdatedAt = now
	j.s.jobs[job.ID] = job
	return job, nil
}

func (j *Jobs) Update(_ context.Context, job types.JobApplication) (types.JobApplication, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return types.JobApplication{}, j.s.err
	}
	existing, ok := j.s.jobs[job.ID]
	if !ok || existing.UserID != job.UserID {
		return types.JobApplication{}, store.ErrNotFound
	}
	now := time.Now().UTC()
	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Microsecond)
	}
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = now
	j.s.jobs[job.ID] = job
	return job, nil
}

func (j *Jobs) Delete(_ context.Context, userID, id int) (types.JobApplication, []string, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return types.JobApplication{}, nil, j.s.err
	}
	job, ok := j.s.jobs[id]
	if !ok || job.UserID != userID {
		return types.JobApplication{}, nil, store.ErrNotFound
	}
	return job, j.s.deleteJobLocked(id), nil
}

func (j *Jobs) Stats(_ context.Context, userID int) (types.JobStats, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if j.s.err != nil {
		return types.JobStats{}, j.s.err
	}
	var stats types.JobStats
	for _, job := range j.s.jobs {
		if job.UserID != userID {
			continue
		}
		stats.Total++
		switch job.Status {
		case types.StatusApplied:
			stats.Applied++
		case types.StatusInterview:
			stats.Interview++
		case types.StatusOffer:
			stats.Offer++
		case types.StatusRejected:
			stats.Rejected++
		case types.StatusWithdrawn:
			stats.Withdrawn++
		}
	}
	return stats, nil
}

// deleteJobLocked removes the job and its attachments, returning their object
// keys in id order.
func (s *Store) deleteJobLocked(id int) []string {
	delete(s.jobs, id)
	var removed []types.JobAttachment
	for attachmentID, attachment := range s.attachments {
		if attachment.JobID == id {
			removed = append(removed, attachment)
			delete(s.attachments, attachmentID)
		}
	}
	sort.Slice(removed, func(a, b int) bool { return removed[a].ID < removed[b].ID })
	keys := make([]string, 0, len(removed))
	for _, attachment := range removed {
		keys = append(keys, attachment.ObjectKey)
	}
	return keys
}

// Attachments mirrors store.AttachmentRepository.
type Attachments struct{ s *Store }

func (a *Attachments) Create(_ context.Context, attachment types.JobAttachment) (types.JobAttachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if a.s.err != nil {
		return types.JobAttachment{}, a.s.err
	}
	if _, ok := a.s.jobs[attachment.JobID]; !ok {
		return types.JobAttachment{}, store.ErrNotFound
	}
	a.s.nextAttach++
	attachment.ID = a.s.nextAttach
	attachment.CreatedAt = time.Now().UTC()
	a.s.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (a *Attachments) ListByJob(_ context.Context, userID, jobID int) ([]types.JobAttachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if a.s.err != nil {
		return nil, a.s.err
	}
	attachments := make([]types.JobAttachment, 0)
	for _, attachment := range a.s.attachments {
		if attachment.JobID == jobID && attachment.UserID == userID {
			attachments = append(attachments, attachment)
		}
	}
	sort.Slice(attachments, func(i, k int) bool { return attachments[i].ID > attachments[k].ID })
	return attachments, nil
}

func (a *Attachments) Get(_ context.Context, userID, jobID, id int) (types.JobAttachment, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if a.s.err != nil {
		return types.JobAttachment{}, a.s.err
	}
	attachment, ok := a.s.attachments[id]
	if !ok || attachment.JobID != jobID || attachment.UserID != userID {
		return types.JobAttachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (a *Attachments) Delete(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error) {
	attachment, err := a.Get(ctx, userID, jobID, id)
	if err != nil {
		return types.JobAttachment{}, err
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	delete(a.s.attachments, id)
	return attachment, nil
}
