package http

import (
	"context"

	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/operations"
	"fuelpanel/internal/websocket"
	"fuelpanel/pkg/contracts/domain"
)

// RunService exposes the state of the run manager
type RunService interface {
	Latest() (*operations.RunSummary, bool)
	Current() (operations.RunSnapshot, bool)
	Closing() domain.ClosingState
}

// JobService queues runs for asynchronous execution
type JobService interface {
	Enqueue(req operations.RunRequest) (*operations.Job, error)
	GetJob(id string) (*operations.Job, error)
	ListJobs(limit int) []*operations.Job
}

// Hub broadcasts events to websocket clients
type Hub interface {
	BroadcastUpdate(eventType, stage, status string, data interface{})
	Stats() websocket.HubStats
}

// SystemStatsSource samples process health
type SystemStatsSource interface {
	Stats(ctx context.Context) infrastructure.SystemStats
}
