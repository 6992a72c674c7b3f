package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fuelpanel/internal/errors"
	"fuelpanel/internal/middleware"
	"fuelpanel/internal/operations"
)

var jobStatuses = []string{
	string(operations.JobStatusPending),
	string(operations.JobStatusRunning),
	string(operations.JobStatusCompleted),
	string(operations.JobStatusFailed),
}

// JobsHandler exposes the job queue
type JobsHandler struct {
	jobs   JobService
	query  *middleware.QueryParamValidator
	errors *apierrors.ErrorHandler
	logger *slog.Logger
}

// NewJobsHandler creates a jobs handler
func NewJobsHandler(jobs JobService, query *middleware.QueryParamValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{
		jobs:   jobs,
		query:  query,
		errors: errorHandler,
		logger: logger.With(slog.String("handler", "jobs")),
	}
}

// Routes returns a chi router for job endpoints
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
	return r
}

// ListJobs handles GET /api/v1/jobs?limit=&status=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 500, 50)
	if !ok {
		return
	}
	status, ok := h.query.ValidateEnum(w, r, "status", jobStatuses, "")
	if !ok {
		return
	}

	// Filter before limiting so the limit counts matching jobs
	all := h.jobs.ListJobs(0)
	jobs := make([]*operations.Job, 0, limit)
	for _, job := range all {
		if status != "" && string(job.Status) != status {
			continue
		}
		jobs = append(jobs, job)
		if len(jobs) == limit {
			break
		}
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
		"total": len(all),
	})
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.logger.DebugContext(r.Context(), "job lookup failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}
