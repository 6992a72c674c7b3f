package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"fuelpanel/internal/config"
)

const (
	ServiceVersion = config.AppVersion
	MeterName      = "fuelpanel"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	return OTelConfigFrom(config.Default().Telemetry)
}

// OTelConfigFrom maps the telemetry section of the application config.
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	out := &OTelConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "none",
		MetricExporter: "none",
		EnableMetrics:  cfg.MetricsEnabled,
		EnableTracing:  cfg.TracesEnabled,
		SampleRatio:    1.0,
	}
	if cfg.TracesEnabled {
		out.TraceExporter = "stdout"
	}
	if cfg.MetricsEnabled {
		out.MetricExporter = "prometheus"
	}
	return out
}

// InitializeOTel initializes tracing and metrics. Disabled signals fall back
// to the no-op implementations so callers never need nil checks.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := createResource(cfg)

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.GetTracerProvider().Tracer(MeterName),
		Meter:  otel.GetMeterProvider().Meter(MeterName),
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics backed by a private
// Prometheus registry served through PrometheusHTTP.
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Run metrics
	RunsTotal        metric.Int64Counter
	RunDuration      metric.Float64Histogram
	ActiveRuns       metric.Int64UpDownCounter
	RunCancellations metric.Int64Counter

	// Batch metrics
	BatchesTotal       metric.Int64Counter
	BatchDuration      metric.Float64Histogram
	ObservationsTotal  metric.Int64Counter
	DuplicatesTotal    metric.Int64Counter
	PanelRowsTotal     metric.Int64Counter
	CarriedOverTotal   metric.Int64Counter
	ZeroPricesTotal    metric.Int64Counter
	MissingSeriesTotal metric.Int64Counter

	// Export metrics
	ExportedBytesTotal metric.Int64Counter
	UploadsTotal       metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests", ""},
		{&m.RunsTotal, "runs_total", "Total number of processing runs", ""},
		{&m.RunCancellations, "run_cancellations_total", "Total number of cancelled runs", ""},
		{&m.BatchesTotal, "batches_total", "Total number of batches by outcome", ""},
		{&m.ObservationsTotal, "observations_total", "Raw observations read from batches", ""},
		{&m.DuplicatesTotal, "duplicate_observations_total", "Duplicate observations resolved", ""},
		{&m.PanelRowsTotal, "panel_rows_total", "Rows written to reconstructed panels", ""},
		{&m.CarriedOverTotal, "carried_over_cells_total", "Opening cells filled from closing state", ""},
		{&m.ZeroPricesTotal, "zero_prices_total", "Zero prices treated as not selling", ""},
		{&m.MissingSeriesTotal, "missing_series_total", "Station quantities without any observation", ""},
		{&m.ExportedBytesTotal, "exported_bytes_total", "Bytes of panel files written", "By"},
		{&m.UploadsTotal, "uploads_total", "Objects uploaded to object storage", ""},
	}
	for _, c := range counters {
		opts := []metric.Int64CounterOption{metric.WithDescription(c.desc)}
		if c.unit != "" {
			opts = append(opts, metric.WithUnit(c.unit))
		}
		if *c.dst, err = meter.Int64Counter(c.name, opts...); err != nil {
			return nil, err
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.HTTPRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds"},
		{&m.RunDuration, "run_duration_seconds", "Processing run duration in seconds"},
		{&m.BatchDuration, "batch_duration_seconds", "Batch processing duration in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, err
		}
	}

	m.ActiveRuns, err = meter.Int64UpDownCounter(
		"active_runs",
		metric.WithDescription("Number of processing runs in progress"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// BatchMeasurement is what one processed batch contributes to the metrics.
type BatchMeasurement struct {
	BatchID       string
	Success       bool
	Duration      time.Duration
	Observations  int
	Duplicates    int
	Rows          int
	CarriedOver   int
	ZeroPrices    int
	MissingSeries int
}

// RecordBatchMetrics records the outcome of one batch
func RecordBatchMetrics(ctx context.Context, metrics *BusinessMetrics, m BatchMeasurement) {
	if metrics == nil {
		return
	}

	status := "success"
	if !m.Success {
		status = "rejected"
	}
	statusAttr := metric.WithAttributes(attribute.String("status", status))

	metrics.BatchesTotal.Add(ctx, 1, statusAttr)
	metrics.BatchDuration.Record(ctx, m.Duration.Seconds(), statusAttr)
	metrics.ObservationsTotal.Add(ctx, int64(m.Observations))

	if m.Success {
		metrics.DuplicatesTotal.Add(ctx, int64(m.Duplicates))
		metrics.PanelRowsTotal.Add(ctx, int64(m.Rows))
		metrics.CarriedOverTotal.Add(ctx, int64(m.CarriedOver))
		metrics.ZeroPricesTotal.Add(ctx, int64(m.ZeroPrices))
		metrics.MissingSeriesTotal.Add(ctx, int64(m.MissingSeries))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("batch.metrics_recorded",
			trace.WithAttributes(
				attribute.String("batch.id", m.BatchID),
				attribute.Bool("success", m.Success),
				attribute.Int("rows", m.Rows),
				attribute.Float64("duration_seconds", m.Duration.Seconds()),
			),
		)
	}
}

// RecordRunMetrics records a finished processing run
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, duration time.Duration, processed, failed int, cancelled bool) {
	if metrics == nil {
		return
	}

	status := "success"
	switch {
	case cancelled:
		status = "cancelled"
		metrics.RunCancellations.Add(ctx, 1)
	case failed > 0:
		status = "partial"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	metrics.RunsTotal.Add(ctx, 1, attrs)
	metrics.RunDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordActiveRunChange records changes in active run count
func RecordActiveRunChange(ctx context.Context, metrics *BusinessMetrics, delta int64) {
	if metrics == nil {
		return
	}
	metrics.ActiveRuns.Add(ctx, delta)
}

// RecordExport records a written panel file and whether it was uploaded
func RecordExport(ctx context.Context, metrics *BusinessMetrics, format string, bytes int64, uploaded bool) {
	if metrics == nil {
		return
	}
	metrics.ExportedBytesTotal.Add(ctx, bytes, metric.WithAttributes(attribute.String("format", format)))
	if uploaded {
		metrics.UploadsTotal.Add(ctx, 1)
	}
}

// RecordHTTPRequest records one served HTTP request
func RecordHTTPRequest(ctx context.Context, metrics *BusinessMetrics, route, method string, status int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	metrics.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
