package operations

import (
	"time"

	"fuelpanel/internal/exporter"
	"fuelpanel/pkg/contracts/domain"
)

// Run stages reported in progress events
const (
	StageDiscovery  = "discovery"
	StageProcessing = "processing"
	StageExport     = "export"
)

// WebSocket event types
const (
	EventTypeRunStatus     = "run:status"
	EventTypeRunProgress   = "run:progress"
	EventTypeRunComplete   = "run:complete"
	EventTypeRunError      = "run:error"
	EventTypeBatchComplete = "batch:complete"
	EventTypeBatchRejected = "batch:rejected"
)

// RunRequest selects what a run processes
type RunRequest struct {
	// OnlyNew skips batch files already processed by this manager and
	// continues from the closing state of the previous run.
	OnlyNew bool `json:"only_new"`
	// Trigger names what started the run, e.g. "cli", "schedule" or "api".
	Trigger string `json:"trigger,omitempty"`
}

// BatchReport describes one successfully processed batch
type BatchReport struct {
	BatchID     string                 `json:"batch_id"`
	Date        string                 `json:"date"`
	Rows        int                    `json:"rows"`
	Stations    int                    `json:"stations"`
	CarriedOver int                    `json:"carried_over"`
	ZeroPrices  int                    `json:"zero_prices"`
	Duplicates  int                    `json:"duplicates"`
	Missing     []domain.MissingSeries `json:"missing,omitempty"`
	OutputPath  string                 `json:"output_path"`
	S3Key       string                 `json:"s3_key,omitempty"`
	SizeBytes   int64                  `json:"size_bytes"`
	Duration    time.Duration          `json:"duration"`
}

// RunSummary is the outcome of one run
type RunSummary struct {
	ID         string                 `json:"id"`
	Trigger    string                 `json:"trigger,omitempty"`
	Status     RunStatus              `json:"status"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Duration   time.Duration          `json:"duration"`
	Discovered int                    `json:"discovered"`
	Processed  []BatchReport          `json:"processed"`
	Failed     []domain.FailedBatch   `json:"failed"`
	Metadata   []domain.BatchMetadata `json:"metadata"`
	Files      exporter.RunFiles      `json:"files"`
	Error      string                 `json:"error,omitempty"`
}

// BatchEvent is the payload of batch events
type BatchEvent struct {
	RunID    string  `json:"run_id"`
	BatchID  string  `json:"batch_id"`
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Progress float64 `json:"progress"`
	ETA      string  `json:"eta,omitempty"`
	Rows     int     `json:"rows,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}
