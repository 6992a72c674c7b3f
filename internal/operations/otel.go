package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fuelpanel/internal/infrastructure"
)

const (
	TracerName = "fuelpanel.operations"
)

// RunTracer provides OpenTelemetry instrumentation for runs and batches
type RunTracer struct {
	tracer          trace.Tracer
	businessMetrics *infrastructure.BusinessMetrics
}

// NewRunTracer creates a tracer. Without providers spans go to the global
// tracer provider and no metrics are recorded.
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	rt := &RunTracer{tracer: otel.Tracer(TracerName)}
	if providers == nil || providers.Meter == nil {
		return rt, nil
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	rt.businessMetrics = businessMetrics
	return rt, nil
}

// Metrics returns the business metrics, nil when metrics are disabled
func (rt *RunTracer) Metrics() *infrastructure.BusinessMetrics {
	return rt.businessMetrics
}

// TraceRun creates a span for a whole run
func (rt *RunTracer) TraceRun(ctx context.Context, runID string, req RunRequest) (context.Context, trace.Span) {
	ctx, span := rt.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.trigger", req.Trigger),
			attribute.Bool("run.only_new", req.OnlyNew),
		),
	)
	infrastructure.RecordActiveRunChange(ctx, rt.businessMetrics, 1)
	return ctx, span
}

// TraceBatch creates a span for one batch
func (rt *RunTracer) TraceBatch(ctx context.Context, runID, batchID string, partitions int) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "run.batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("batch.id", batchID),
			attribute.Int("batch.partitions", partitions),
		),
	)
}

// RecordBatchCompletion ends a batch span and records its metrics
func (rt *RunTracer) RecordBatchCompletion(ctx context.Context, span trace.Span, m infrastructure.BatchMeasurement, err error) {
	span.SetAttributes(
		attribute.Bool("batch.success", m.Success),
		attribute.Int("batch.rows", m.Rows),
		attribute.Float64("batch.duration_seconds", m.Duration.Seconds()),
	)
	infrastructure.RecordBatchMetrics(ctx, rt.businessMetrics, m)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "batch processed")
	}
	span.End()
}

// RecordExport records a written panel file
func (rt *RunTracer) RecordExport(ctx context.Context, export PanelExportInfo) {
	infrastructure.RecordExport(ctx, rt.businessMetrics, export.Format, export.SizeBytes, export.Uploaded)
}

// RecordRunCompletion ends a run span and records the run metrics
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, summary *RunSummary, duration time.Duration) {
	span.SetAttributes(
		attribute.String("run.status", string(summary.Status)),
		attribute.Int("run.discovered", summary.Discovered),
		attribute.Int("run.processed", len(summary.Processed)),
		attribute.Int("run.failed", len(summary.Failed)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordRunMetrics(ctx, rt.businessMetrics, duration,
		len(summary.Processed), len(summary.Failed), summary.Status == RunStatusCancelled)
	infrastructure.RecordActiveRunChange(ctx, rt.businessMetrics, -1)

	if summary.Status == RunStatusCompleted {
		span.SetStatus(codes.Ok, "run completed")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("run finished with status: %s", summary.Status))
	}
	span.End()
}

// PanelExportInfo is what the tracer records about one exported panel
type PanelExportInfo struct {
	Format    string
	SizeBytes int64
	Uploaded  bool
}
