package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jobtracker/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var attachmentColumnNames = []string{"id", "job_id", "user_id", "filename", "content_type", "size_bytes", "object_key", "created_at"}

func newAttachmentRepoWithMock(t *testing.T) (*AttachmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewAttachmentRepository(db), mock
}

func TestAttachmentRepository_Create(t *testing.T) {
	repo, mock := newAttachmentRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO job_attachments (job_id, user_id, filename, content_type, size_bytes, object_key, created_at)`)).
		WithArgs(3, 7, "resume.pdf", "application/pdf", int64(2048), "users/7/jobs/3/x-resume.pdf", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	attachment, err := repo.Create(context.Background(), types.JobAttachment{
		JobID:       3,
		UserID:      7,
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		ObjectKey:   "users/7/jobs/3/x-resume.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, attachment.ID)
}

func TestAttachmentRepository_Create_JobGone(t *testing.T) {
	repo, mock := newAttachmentRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO job_attachments`)).
		WillReturnError(&pq.Error{Code: "23503", Message: "insert or update on table \"job_attachments\" violates foreign key constraint"})

	_, err := repo.Create(context.Background(), types.JobAttachment{JobID: 3, UserID: 7, Filename: "a.txt", ContentType: "text/plain", SizeBytes: 1, ObjectKey: "k"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachmentRepository_Create_UniqueViolation(t *testing.T) {
	repo, mock := newAttachmentRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO job_attachments`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.Create(context.Background(), types.JobAttachment{JobID: 3, UserID: 7, Filename: "a.txt", ContentType: "text/plain", SizeBytes: 1, ObjectKey: "k"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAttachmentRepository_ListByJob(t *testing.T) {
	repo, mock := newAttachmentRepoWithMock(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM job_attachments WHERE job_id = $1 AND user_id = $2 ORDER BY created_at DESC, id DESC`)).
		WithArgs(3, 7).
		WillReturnRows(sqlmock.NewRows(attachmentColumnNames).
			AddRow(6, 3, 7, "cover.txt", "text/plain", 10, "k2", created).
			AddRow(5, 3, 7, "resume.pdf", "application/pdf", 2048, "k1", created))

	attachments, err := repo.ListByJob(context.Background(), 7, 3)
	require.NoError(t, err)
	require.Len(t, attachments, 2)
	assert.Equal(t, "cover.txt", attachments[0].Filename)
	assert.Equal(t, int64(2048), attachments[1].SizeBytes)
}

func TestAttachmentRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newAttachmentRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM job_attachments WHERE id = $1 AND job_id = $2 AND user_id = $3 RETURNING`)).
		WithArgs(5, 3, 8).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Delete(context.Background(), 8, 3, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}
