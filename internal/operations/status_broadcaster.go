package operations

import (
	"log/slog"
)

// StatusBroadcaster turns run state changes into hub events. A nil hub
// makes every call a no-op.
type StatusBroadcaster struct {
	hub    WebSocketHub
	logger *slog.Logger
}

// NewStatusBroadcaster creates a new status broadcaster
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusBroadcaster{hub: hub, logger: logger}
}

// RunStatus publishes a snapshot of the run
func (sb *StatusBroadcaster) RunStatus(state *RunState) {
	snap := state.Snapshot()
	sb.send(EventTypeRunStatus, snap.Stage, string(snap.Status), snap)
}

// BatchProgress publishes the outcome of one batch together with the run
// progress
func (sb *StatusBroadcaster) BatchProgress(runID string, progress *ProgressTracker, event BatchEvent) {
	current, total, pct, _ := progress.GetProgress()
	event.RunID = runID
	event.Index = current
	event.Total = total
	event.Progress = pct
	event.ETA = progress.GetETA()

	eventType := EventTypeBatchComplete
	status := "completed"
	if event.Kind != "" {
		eventType = EventTypeBatchRejected
		status = "rejected"
	}
	sb.send(eventType, StageProcessing, status, event)
	sb.send(EventTypeRunProgress, StageProcessing, string(RunStatusRunning), event)
}

// RunFinished publishes the summary of a finished run
func (sb *StatusBroadcaster) RunFinished(summary *RunSummary) {
	if summary.Status == RunStatusFailed {
		sb.send(EventTypeRunError, StageExport, string(summary.Status), summary)
		return
	}
	sb.send(EventTypeRunComplete, StageExport, string(summary.Status), summary)
}

func (sb *StatusBroadcaster) send(eventType, stage, status string, data interface{}) {
	if sb.hub == nil {
		return
	}
	sb.hub.BroadcastUpdate(eventType, stage, status, data)
	sb.logger.Debug("status_broadcast",
		slog.String("event", eventType),
		slog.String("stage", stage),
		slog.String("status", status))
}
