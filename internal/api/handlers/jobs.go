package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fiscal-pilot/internal/api/middleware"
	"github.com/dvloznov/fiscal-pilot/internal/jobs"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// Enqueue handles POST /api/cycles with body {"type": "spending"|"investment"}.
func (h *JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	jobType, err := jobs.ParseJobType(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	job := &jobs.CycleJob{
		Type:      jobType,
		SubjectID: middleware.SubjectFromContext(ctx),
	}
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue cycle job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue cycle")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("type", string(job.Type)).Msg("Cycle job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"type":   string(job.Type),
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}. Jobs of other subjects are reported as
// missing.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrNotFound) || (err == nil && job.SubjectID != middleware.SubjectFromContext(ctx)) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?type=&status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := jobs.JobFilter{
		SubjectID: middleware.SubjectFromContext(ctx),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if t := query.Get("type"); t != "" {
		jt, err := jobs.ParseJobType(t)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Type = jt
	}
	limit, ok := parseLimit(w, query.Get("limit"))
	if !ok {
		return
	}
	offset, ok := parseLimit(w, query.Get("offset"))
	if !ok {
		return
	}
	filter.Limit, filter.Offset = limit, offset

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
