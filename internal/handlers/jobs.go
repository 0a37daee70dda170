package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jobtracker/apiserver/internal/services"
	"github.com/jobtracker/apiserver/types"
)

const jobIDParam = "jobID"

// JobHandler provides HTTP handlers for job applications.
type JobHandler struct {
	jobs *services.JobService
}

func NewJobHandler(jobs *services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// JobRouter registers job routes on the given router. Attachment routes are
// mounted only when attachments is non-nil. The caller applies RequireAuth.
func JobRouter(r chi.Router, jobs *services.JobService, attachments *services.AttachmentService) {
	handler := NewJobHandler(jobs)

	r.Get("/", handler.ListJobs)
	r.Post("/", handler.CreateJob)
	r.Route("/{"+jobIDParam+"}", func(r chi.Router) {
		r.Get("/", handler.GetJob)
		r.Put("/", handler.UpdateJob)
		r.Delete("/", handler.DeleteJob)
		if attachments != nil {
			r.Route("/attachments", func(r chi.Router) {
				AttachmentRouter(r, attachments)
			})
		}
	})
}

func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	query := r.URL.Query()
	filter := types.JobFilter{
		Status:  types.JobStatus(strings.ToLower(strings.TrimSpace(query.Get("status")))),
		Company: query.Get("company"),
	}

	page, err := h.jobs.List(r.Context(), userID, filter, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch job applications")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := jobScope(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch job application")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	var input services.JobInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.jobs.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, err, "failed to create job application")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := jobScope(w, r)
	if !ok {
		return
	}

	var input services.JobInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.jobs.Update(r.Context(), userID, id, input)
	if err != nil {
		writeServiceError(w, r, err, "failed to update job application")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := jobScope(w, r)
	if !ok {
		return
	}

	deleted, err := h.jobs.Delete(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to delete job application")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "Job application deleted successfully",
		Deleted: deleted,
	})
}

// jobScope resolves the caller and the job id from the URL, writing the
// error response itself when either is missing.
func jobScope(w http.ResponseWriter, r *http.Request) (userID, jobID int, ok bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access token required")
		return 0, 0, false
	}
	jobID, err = parseIDParam(r, jobIDParam, "job")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, jobID, true
}

// StatsHandler serves per-status counts.
type StatsHandler struct {
	jobs *services.JobService
}

func NewStatsHandler(jobs *services.JobService) *StatsHandler {
	return &StatsHandler{jobs: jobs}
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	stats, err := h.jobs.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
