package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "fuelpanel/internal/errors"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/middleware"
	"fuelpanel/internal/operations"
)

// TriggerAPI marks runs started through the status API
const TriggerAPI = "api"

// RunRequest is the body of POST /api/v1/runs. OnlyNew defaults to true.
type RunRequest struct {
	OnlyNew *bool  `json:"only_new"`
	Trigger string `json:"trigger,omitempty" validate:"omitempty,trigger,max=32"`
}

// Bind implements the render.Binder interface
func (req *RunRequest) Bind(r *http.Request) error {
	if req.Trigger == "" {
		req.Trigger = TriggerAPI
	}
	return nil
}

func (req *RunRequest) toRunRequest() operations.RunRequest {
	onlyNew := true
	if req.OnlyNew != nil {
		onlyNew = *req.OnlyNew
	}
	return operations.RunRequest{OnlyNew: onlyNew, Trigger: req.Trigger}
}

// RunAccepted is the 202 answer to a queued run
type RunAccepted struct {
	JobID   string               `json:"job_id"`
	Status  operations.JobStatus `json:"status"`
	OnlyNew bool                 `json:"only_new"`
	Message string               `json:"message"`
	PollURL string               `json:"poll_url"`
}

// Render implements the render.Renderer interface
func (a *RunAccepted) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusAccepted)
	return nil
}

// RunsHandler serves run status and accepts new runs
type RunsHandler struct {
	runs       RunService
	jobs       JobService
	hub        Hub
	validation *middleware.ValidationMiddleware
	errors     *apierrors.ErrorHandler
	logger     *slog.Logger
}

// NewRunsHandler creates a runs handler. A nil hub disables queue notifications.
func NewRunsHandler(runs RunService, jobs JobService, hub Hub, validation *middleware.ValidationMiddleware, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		runs:       runs,
		jobs:       jobs,
		hub:        hub,
		validation: validation,
		errors:     errorHandler,
		logger:     logger.With(slog.String("handler", "runs")),
	}
}

// Routes returns a chi router for run endpoints
func (h *RunsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(
		middleware.ContentTypeValidator("application/json"),
		h.validation.ValidateRequest,
	).Post("/", h.StartRun)
	r.Get("/latest", h.LatestRun)
	r.Get("/current", h.CurrentRun)
	return r
}

// LatestRun handles GET /api/v1/runs/latest
func (h *RunsHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.runs.Latest()
	if !ok {
		h.errors.HandleError(w, r, apierrors.ErrNoRunYet)
		return
	}
	render.JSON(w, r, summary)
}

// CurrentRun handles GET /api/v1/runs/current. Without a run in flight it
// answers with the idle status.
func (h *RunsHandler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.runs.Current()
	if !ok {
		render.JSON(w, r, map[string]interface{}{"status": "idle"})
		return
	}
	render.JSON(w, r, snapshot)
}

// StartRun handles POST /api/v1/runs
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	ctx, span := otel.Tracer(infrastructure.MeterName+".http").Start(ctx, "runs_handler.start_run",
		trace.WithAttributes(
			attribute.String("request_id", reqID),
			attribute.String("component", "runs_handler"),
		),
	)
	defer span.End()
	r = r.WithContext(ctx)

	data := &RunRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, data); err != nil {
			span.RecordError(err)
			h.logger.WarnContext(ctx, "failed to bind run request",
				slog.String("error", err.Error()),
				slog.String("request_id", reqID))
			h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
	} else {
		_ = data.Bind(r)
	}
	if err := h.validation.ValidateStruct(data); err != nil {
		span.RecordError(err)
		h.errors.HandleError(w, r, err)
		return
	}

	req := data.toRunRequest()
	span.SetAttributes(
		attribute.Bool("run.only_new", req.OnlyNew),
		attribute.String("run.trigger", req.Trigger),
	)

	job, err := h.jobs.Enqueue(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job enqueue failed")
		h.logger.ErrorContext(ctx, "failed to enqueue run",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))
		if errors.Is(err, operations.ErrQueueFull) {
			h.errors.HandleError(w, r, apierrors.ErrQueueFull)
			return
		}
		h.errors.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "run queued",
		slog.String("job_id", job.ID),
		slog.Bool("only_new", req.OnlyNew),
		slog.String("trigger", req.Trigger),
		slog.String("request_id", reqID))

	if h.hub != nil {
		h.hub.BroadcastUpdate(operations.EventTypeRunStatus, "queued", string(job.Status), map[string]interface{}{
			"job_id":    job.ID,
			"only_new":  req.OnlyNew,
			"trigger":   req.Trigger,
			"timestamp": time.Now().UTC(),
		})
	}

	render.Render(w, r, &RunAccepted{
		JobID:   job.ID,
		Status:  job.Status,
		OnlyNew: req.OnlyNew,
		Message: "Run queued for processing",
		PollURL: "/api/v1/jobs/" + job.ID,
	})
}
