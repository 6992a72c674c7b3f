package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"fuelpanel/internal/config"
	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/websocket"
)

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status    string                      `json:"status"`
	Version   string                      `json:"version"`
	Timestamp time.Time                   `json:"timestamp"`
	Run       string                      `json:"run"`
	LastRun   string                      `json:"last_run,omitempty"`
	System    *infrastructure.SystemStats `json:"system,omitempty"`
	WebSocket *websocket.HubStats         `json:"websocket,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	runs   RunService
	hub    Hub
	system SystemStatsSource
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. Hub and system may be nil.
func NewHealthHandler(runs RunService, hub Hub, system SystemStatsSource, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		runs:   runs,
		hub:    hub,
		system: system,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   config.AppVersion,
		Timestamp: time.Now().UTC(),
		Run:       "idle",
	}

	if snap, ok := h.runs.Current(); ok {
		resp.Run = string(snap.Status)
	}
	if latest, ok := h.runs.Latest(); ok {
		resp.LastRun = string(latest.Status)
		if len(latest.Failed) > 0 {
			resp.Status = "degraded"
		}
	}
	if h.system != nil {
		stats := h.system.Stats(r.Context())
		resp.System = &stats
	}
	if h.hub != nil {
		stats := h.hub.Stats()
		resp.WebSocket = &stats
	}

	render.JSON(w, r, resp)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "alive"})
}
