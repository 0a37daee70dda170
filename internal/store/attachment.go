package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jobtracker/apiserver/types"
)

const attachmentColumns = `id, job_id, user_id, filename, content_type, size_bytes, object_key, created_at`

// AttachmentRepository handles persistence for job attachment metadata.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create inserts the attachment. A job that no longer exists yields
// ErrNotFound.
func (r *AttachmentRepository) Create(ctx context.Context, attachment types.JobAttachment) (types.JobAttachment, error) {
	attachment.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO job_attachments (job_id, user_id, filename, content_type, size_bytes, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.JobID,
		attachment.UserID,
		attachment.Filename,
		attachment.ContentType,
		attachment.SizeBytes,
		attachment.ObjectKey,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		if isUniqueViolation(err) {
			return types.JobAttachment{}, ErrConflict
		}
		if isForeignKeyViolation(err) {
			return types.JobAttachment{}, ErrNotFound
		}
		return types.JobAttachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) ListByJob(ctx context.Context, userID, jobID int) ([]types.JobAttachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM job_attachments
		WHERE job_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, jobID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := make([]types.JobAttachment, 0)
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error) {
	const query = `
		SELECT ` + attachmentColumns + `
		FROM job_attachments
		WHERE id = $1 AND job_id = $2 AND user_id = $3`
	return r.queryOne(ctx, query, id, jobID, userID)
}

func (r *AttachmentRepository) Delete(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error) {
	const query = `
		DELETE FROM job_attachments
		WHERE id = $1 AND job_id = $2 AND user_id = $3
		RETURNING ` + attachmentColumns
	return r.queryOne(ctx, query, id, jobID, userID)
}

func (r *AttachmentRepository) queryOne(ctx context.Context, query string, args ...any) (types.JobAttachment, error) {
	attachment, err := scanAttachment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.JobAttachment{}, ErrNotFound
		}
		return types.JobAttachment{}, err
	}
	return attachment, nil
}

func scanAttachment(row rowScanner) (types.JobAttachment, error) {
	var attachment types.JobAttachment
	err := row.Scan(
		&attachment.ID,
		&attachment.JobID,
		&attachment.UserID,
		&attachment.Filename,
		&attachment.ContentType,
		&attachment.SizeBytes,
		&attachment.ObjectKey,
		&attachment.CreatedAt,
	)
	return attachment, err
}
