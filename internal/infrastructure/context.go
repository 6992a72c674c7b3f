package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ContextForRun tags ctx with the run ID as trace ID. An empty runID gets a
// fresh UUID.
func ContextForRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = uuid.New().String()
	}
	return WithTraceID(ctx, runID)
}

// ContextForBatch records the batch ID on ctx. A context outside any run
// gets its own trace ID so batch lines can still be grouped.
func ContextForBatch(ctx context.Context, batchID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = ContextForRun(ctx, "")
	}
	return WithBatchID(ctx, batchID)
}

// LoggerWithContext returns the global logger with the trace and batch IDs
// of ctx attached, for code that logs without passing ctx to slog.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if traceID := GetTraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	if batchID := GetBatchID(ctx); batchID != "" {
		logger = logger.With("batch_id", batchID)
	}
	return logger
}

// WithComponent tags logger with the component name
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}
