package operations

import (
	"context"
	"log/slog"
	"time"

	"fuelpanel/pkg/contracts/domain"
)

// logRunStart logs the start of a run
func (m *Manager) logRunStart(ctx context.Context, runID string, req RunRequest, batches int) {
	m.logger.InfoContext(ctx, "run_start",
		slog.String("run_id", runID),
		slog.String("trigger", req.Trigger),
		slog.Bool("only_new", req.OnlyNew),
		slog.Int("batches", batches),
		slog.Int("partitions", m.cfg.partitions()))
}

// logRunComplete logs the completion of a run
func (m *Manager) logRunComplete(ctx context.Context, summary *RunSummary) {
	m.logger.InfoContext(ctx, "run_complete",
		slog.String("run_id", summary.ID),
		slog.String("status", string(summary.Status)),
		slog.Int("processed", len(summary.Processed)),
		slog.Int("failed", len(summary.Failed)),
		slog.Duration("duration", summary.Duration))
}

// logRunError logs a run error
func (m *Manager) logRunError(ctx context.Context, runID string, err error) {
	errorMsg := "unknown error"
	if err != nil {
		errorMsg = err.Error()
	}
	m.logger.ErrorContext(ctx, "run_error",
		slog.String("run_id", runID),
		slog.String("error", errorMsg))
}

// logBatchComplete logs a processed batch
func (m *Manager) logBatchComplete(ctx context.Context, report BatchReport) {
	m.logger.InfoContext(ctx, "batch_complete",
		slog.String("batch_id", report.BatchID),
		slog.String("date", report.Date),
		slog.Int("rows", report.Rows),
		slog.Int("stations", report.Stations),
		slog.Int("carried_over", report.CarriedOver),
		slog.String("output", report.OutputPath),
		slog.Duration("duration", report.Duration))
}

// logBatchRejected logs a batch that was skipped. The run carries on.
func (m *Manager) logBatchRejected(ctx context.Context, failed domain.FailedBatch, duration time.Duration) {
	m.logger.ErrorContext(ctx, "batch_rejected",
		slog.String("batch_id", failed.BatchID),
		slog.String("kind", failed.Kind),
		slog.String("reason", failed.Reason),
		slog.Duration("duration", duration))
}

// logBatchWarnings logs the non-fatal findings of a batch
func (m *Manager) logBatchWarnings(ctx context.Context, batchID string, warnings []error) {
	for _, w := range warnings {
		m.logger.WarnContext(ctx, "batch_warning",
			slog.String("batch_id", batchID),
			slog.String("warning", w.Error()))
	}
}
