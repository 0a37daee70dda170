package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/storage"
	"github.com/jobtracker/apiserver/internal/store"
	"github.com/jobtracker/apiserver/types"
)

const (
	DefaultMaxAttachmentBytes = 10 << 20
	defaultContentType        = "application/octet-stream"
	maxStoredFilename         = 100
	maxFilenameLength         = 255
	maxContentTypeLength      = 255
	msgAttachmentNotFound     = "attachment not found"
)

// AttachmentRepository defines persistence operations for attachment
// metadata. Every method is scoped to the owning user.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.JobAttachment) (types.JobAttachment, error)
	ListByJob(ctx context.Context, userID, jobID int) ([]types.JobAttachment, error)
	Get(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error)
	Delete(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error)
}

// ObjectStore holds attachment bytes. *storage.Storage implements it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type jobLookup interface {
	Get(ctx context.Context, userID, id int) (types.JobApplication, error)
}

// Upload is a file received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentService stores files against job applications.
type AttachmentService struct {
	repo     AttachmentRepository
	jobs     jobLookup
	objects  ObjectStore
	maxBytes int64
}

func NewAttachmentService(repo AttachmentRepository, jobs jobLookup, objects ObjectStore, maxBytes int64) *AttachmentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	return &AttachmentService{
		repo:     repo,
		jobs:     jobs,
		objects:  objects,
		maxBytes: maxBytes,
	}
}

// MaxBytes is the largest accepted upload.
func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores the file and records its metadata. The object is removed
// again if the metadata cannot be saved.
func (s *AttachmentService) Upload(ctx context.Context, userID, jobID int, upload Upload) (types.JobAttachment, error) {
	if err := s.ensureJob(ctx, userID, jobID); err != nil {
		return types.JobAttachment{}, err
	}

	filename := strings.TrimSpace(upload.Filename)
	if filename == "" {
		return types.JobAttachment{}, validationError("filename is required")
	}
	if err := checkLength("filename", filename, maxFilenameLength); err != nil {
		return types.JobAttachment{}, err
	}
	if upload.Size <= 0 || upload.Body == nil {
		return types.JobAttachment{}, validationError("file is empty")
	}
	if upload.Size > s.maxBytes {
		return types.JobAttachment{}, validationError("file exceeds %d bytes", s.maxBytes)
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	if err := checkLength("content type", contentType, maxContentTypeLength); err != nil {
		return types.JobAttachment{}, err
	}

	key := ObjectKey(userID, jobID, uuid.NewString(), filename)
	if err := s.objects.Put(ctx, key, io.LimitReader(upload.Body, upload.Size), upload.Size, contentType); err != nil {
		return types.JobAttachment{}, fmt.Errorf("store attachment: %w", err)
	}

	created, err := s.repo.Create(ctx, types.JobAttachment{
		JobID:       jobID,
		UserID:      userID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   upload.Size,
		ObjectKey:   key,
	})
	if err != nil {
		s.RemoveObjects(ctx, []string{key})
		if errors.Is(err, store.ErrNotFound) {
			return types.JobAttachment{}, notFoundError(msgJobNotFound)
		}
		return types.JobAttachment{}, fmt.Errorf("save attachment: %w", err)
	}
	return created, nil
}

func (s *AttachmentService) List(ctx context.Context, userID, jobID int) ([]types.JobAttachment, error) {
	if err := s.ensureJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	attachments, err := s.repo.ListByJob(ctx, userID, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	if attachments == nil {
		attachments = []types.JobAttachment{}
	}
	return attachments, nil
}

// Open returns the attachment and a reader over its bytes. The caller closes
// the reader.
func (s *AttachmentService) Open(ctx context.Context, userID, jobID, id int) (types.JobAttachment, io.ReadCloser, error) {
	attachment, err := s.repo.Get(ctx, userID, jobID, id)
	if err != nil {
		return types.JobAttachment{}, nil, mapAttachmentErr("get attachment", err)
	}

	body, err := s.objects.Get(ctx, attachment.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return types.JobAttachment{}, nil, notFoundError(msgAttachmentNotFound)
		}
		return types.JobAttachment{}, nil, fmt.Errorf("open attachment: %w", err)
	}
	return attachment, body, nil
}

// Delete removes the metadata row and then the object. A failed object
// removal is logged and does not fail the call.
func (s *AttachmentService) Delete(ctx context.Context, userID, jobID, id int) (types.JobAttachment, error) {
	deleted, err := s.repo.Delete(ctx, userID, jobID, id)
	if err != nil {
		return types.JobAttachment{}, mapAttachmentErr("delete attachment", err)
	}
	s.RemoveObjects(ctx, []string{deleted.ObjectKey})
	return deleted, nil
}

// RemoveObjects deletes each key, logging failures.
func (s *AttachmentService) RemoveObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			logging.FromContext(ctx).Warn("remove attachment object failed", "key", key, "error", err)
		}
	}
}

func (s *AttachmentService) ensureJob(ctx context.Context, userID, jobID int) error {
	if _, err := s.jobs.Get(ctx, userID, jobID); err != nil {
		return mapJobErr("get job", err)
	}
	return nil
}

// ObjectKey builds users/<uid>/jobs/<jobID>/<id>-<filename> with the
// filename reduced to a safe character set.
func ObjectKey(userID, jobID int, id, filename string) string {
	return fmt.Sprintf("users/%d/jobs/%d/%s-%s", userID, jobID, id, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxStoredFilename {
			break
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func mapAttachmentErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(msgAttachmentNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
