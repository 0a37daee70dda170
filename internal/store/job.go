package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jobtracker/apiserver/types"
)

const jobColumns = `id, user_id, company_name, job_title, job_url, location, salary_range,
		job_description, requirements, notes, contact_person, contact_email,
		application_date, follow_up_date, status, created_at, updated_at`

// JobRepository handles persistence for job applications. Every query is
// scoped to the owning user.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// List returns one page of the user's applications matching filter, newest
// first, along with the total number of matches.
func (r *JobRepository) List(ctx context.Context, userID int, filter types.JobFilter, offset, limit int) ([]types.JobApplication, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	where, args := jobFilterClause(userID, filter)

	countQuery := `SELECT COUNT(1) FROM job_applications WHERE ` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM job_applications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, jobColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs := make([]types.JobApplication, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *JobRepository) Get(ctx context.Context, userID, id int) (types.JobApplication, error) {
	query := `SELECT ` + jobColumns + `
		FROM job_applications
		WHERE id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, id, userID)
}

func (r *JobRepository) Create(ctx context.Context, job types.JobApplication) (types.JobApplication, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO job_applications (
			user_id, company_name, job_title, job_url, location, salary_range,
			job_description, requirements, notes, contact_person, contact_email,
			application_date, follow_up_date, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + jobColumns
	return r.queryOne(
		ctx,
		query,
		job.UserID,
		job.CompanyName,
		job.JobTitle,
		job.JobURL,
		job.Location,
		job.SalaryRange,
		job.JobDescription,
		job.Requirements,
		job.Notes,
		job.ContactPerson,
		job.ContactEmail,
		job.ApplicationDate,
		job.FollowUpDate,
		string(job.Status),
		now,
		now,
	)
}

// Update replaces every mutable column of the application identified by
// job.ID and job.UserID.
func (r *JobRepository) Update(ctx context.Context, job types.JobApplication) (types.JobApplication, error) {
	query := `
		UPDATE job_applications
		SET company_name = $1,
			job_title = $2,
			job_url = $3,
			location = $4,
			salary_range = $5,
			job_description = $6,
			requirements = $7,
			notes = $8,
			contact_person = $9,
			contact_email = $10,
			application_date = $11,
			follow_up_date = $12,
			status = $13,
			updated_at = $14
		WHERE id = $15 AND user_id = $16
		RETURNING ` + jobColumns
	return r.queryOne(
		ctx,
		query,
		job.CompanyName,
		job.JobTitle,
		job.JobURL,
		job.Location,
		job.SalaryRange,
		job.JobDescription,
		job.Requirements,
		job.Notes,
		job.ContactPerson,
		job.ContactEmail,
		job.ApplicationDate,
		job.FollowUpDate,
		string(job.Status),
		time.Now().UTC(),
		job.ID,
		job.UserID,
	)
}

// Delete removes the application and returns it as it was.
// Delete removes the application and, through the foreign key cascade, its
// attachment rows. It returns the deleted row and the object keys of the
// attachments that went with it. The job row is locked first so no attachment
// can be inserted between collecting the keys and the delete.
func (r *JobRepository) Delete(ctx context.Context, userID, id int) (types.JobApplication, []string, error) {
	var (
		job  types.JobApplication
		keys []string
	)
	err := withTx(ctx, r.db, func(ctx context.Context, tx dbtx) error {
		var locked int
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM job_applications WHERE id = $1 AND user_id = $2 FOR UPDATE`,
			id, userID,
		).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		keys, err = attachmentKeys(ctx, tx, id)
		if err != nil {
			return err
		}

		job, err = scanJob(tx.QueryRowContext(ctx, `
			DELETE FROM job_applications
			WHERE id = $1 AND user_id = $2
			RETURNING `+jobColumns, id, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return types.JobApplication{}, nil, err
	}
	return job, keys, nil
}

func attachmentKeys(ctx context.Context, tx dbtx, jobID int) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT object_key FROM job_attachments WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Stats counts the user's applications per status.
func (r *JobRepository) Stats(ctx context.Context, userID int) (types.JobStats, error) {
	const query = `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'applied'),
			COUNT(*) FILTER (WHERE status = 'interview'),
			COUNT(*) FILTER (WHERE status = 'offer'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'withdrawn')
		FROM job_applications
		WHERE user_id = $1`
	var stats types.JobStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Applied,
		&stats.Interview,
		&stats.Offer,
		&stats.Rejected,
		&stats.Withdrawn,
	)
	if err != nil {
		return types.JobStats{}, err
	}
	return stats, nil
}

func (r *JobRepository) queryOne(ctx context.Context, query string, args ...any) (types.JobApplication, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.JobApplication{}, ErrNotFound
		}
		return types.JobApplication{}, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (types.JobApplication, error) {
	var job types.JobApplication
	var status string
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.CompanyName,
		&job.JobTitle,
		&job.JobURL,
		&job.Location,
		&job.SalaryRange,
		&job.JobDescription,
		&job.Requirements,
		&job.Notes,
		&job.ContactPerson,
		&job.ContactEmail,
		&job.ApplicationDate,
		&job.FollowUpDate,
		&status,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return types.JobApplication{}, err
	}
	job.Status = types.JobStatus(status)
	return job, nil
}

// jobFilterClause builds the WHERE clause and its positional arguments.
// user_id is always $1.
func jobFilterClause(userID int, filter types.JobFilter) (string, []any) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if company := strings.TrimSpace(filter.Company); company != "" {
		args = append(args, "%"+escapeLike(company)+"%")
		conditions = append(conditions, fmt.Sprintf("company_name ILIKE $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
