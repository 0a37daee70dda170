package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jobtracker/apiserver/internal/logging"
	"github.com/jobtracker/apiserver/internal/services"
	"github.com/jobtracker/apiserver/types"
)

const (
	attachmentIDParam  = "attachmentID"
	formFieldFile      = "file"
	maxMultipartMemory = 8 << 20
	multipartOverhead  = 1 << 20
)

// AttachmentHandler provides HTTP handlers for job attachments.
type AttachmentHandler struct {
	attachments *services.AttachmentService
}

func NewAttachmentHandler(attachments *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// AttachmentRouter registers attachment routes under a job route.
func AttachmentRouter(r chi.Router, attachments *services.AttachmentService) {
	handler := NewAttachmentHandler(attachments)

	r.Get("/", handler.ListAttachments)
	r.Post("/", handler.UploadAttachment)
	r.Route("/{"+attachmentIDParam+"}", func(r chi.Router) {
		r.Get("/", handler.DownloadAttachment)
		r.Delete("/", handler.DeleteAttachment)
	})
}

type AttachmentListResponse struct {
	Attachments []types.JobAttachment `json:"attachments"`
}

func (h *AttachmentHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := jobScope(w, r)
	if !ok {
		return
	}

	maxBytes := h.attachments.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds %d bytes", maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	created, err := h.attachments.Upload(r.Context(), userID, jobID, services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to upload attachment")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := jobScope(w, r)
	if !ok {
		return
	}

	attachments, err := h.attachments.List(r.Context(), userID, jobID)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch attachments")
		return
	}

	writeJSON(w, http.StatusOK, AttachmentListResponse{Attachments: attachments})
}

func (h *AttachmentHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, jobID, id, ok := attachmentScope(w, r)
	if !ok {
		return
	}

	attachment, body, err := h.attachments.Open(r.Context(), userID, jobID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch attachment")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.SizeBytes, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logging.FromContext(r.Context()).Warn("stream attachment failed", "attachment_id", id, "error", err)
	}
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	userID, jobID, id, ok := attachmentScope(w, r)
	if !ok {
		return
	}

	deleted, err := h.attachments.Delete(r.Context(), userID, jobID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to delete attachment")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Attachment deleted successfully",
		Deleted: deleted,
	})
}

func attachmentScope(w http.ResponseWriter, r *http.Request) (userID, jobID, attachmentID int, ok bool) {
	userID, jobID, ok = jobScope(w, r)
	if !ok {
		return 0, 0, 0, false
	}
	attachmentID, err := parseIDParam(r, attachmentIDParam, "attachment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, 0, false
	}
	return userID, jobID, attachmentID, true
}
