package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fuelpanel/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// collectSums returns the summed value of every int64 counter by name.
func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func testMetrics(t *testing.T) (*BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "stdout"

	providers, err := InitializeOTel(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfigFrom(t *testing.T) {
	tests := []struct {
		name           string
		telemetry      config.TelemetryConfig
		traceExporter  string
		metricExporter string
	}{
		{"defaults", config.Default().Telemetry, "none", "prometheus"},
		{"everything on", config.TelemetryConfig{ServiceName: "x", TracesEnabled: true, MetricsEnabled: true}, "stdout", "prometheus"},
		{"everything off", config.TelemetryConfig{ServiceName: "x"}, "none", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := OTelConfigFrom(tt.telemetry)
			assert.Equal(t, tt.telemetry.ServiceName, cfg.ServiceName)
			assert.Equal(t, tt.traceExporter, cfg.TraceExporter)
			assert.Equal(t, tt.metricExporter, cfg.MetricExporter)
			assert.Equal(t, ServiceVersion, cfg.ServiceVersion)
		})
	}
}

func TestOTelDisabledFallsBackToNoop(t *testing.T) {
	providers, err := InitializeOTel(OTelConfigFrom(config.TelemetryConfig{ServiceName: "off"}), discardLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	// Instruments from the fallback meter accept records
	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordBatchMetrics(context.Background(), metrics, BatchMeasurement{BatchID: "b", Success: true, Rows: 3})
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestUnsupportedExporters(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "jaeger"
	_, err := InitializeOTel(cfg, discardLogger())
	assert.ErrorContains(t, err, "unsupported trace exporter")

	cfg = DefaultOTelConfig()
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, discardLogger())
	assert.ErrorContains(t, err, "unsupported metric exporter")
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordBatchMetrics(context.Background(), metrics, BatchMeasurement{BatchID: "b1", Success: true, Rows: 12})

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "panel_rows")
	assert.Contains(t, string(body), "batches")
}

func TestRecordBatchMetrics(t *testing.T) {
	metrics, reader := testMetrics(t)
	ctx := context.Background()

	RecordBatchMetrics(ctx, metrics, BatchMeasurement{
		BatchID:       "2014-06-08",
		Success:       true,
		Duration:      250 * time.Millisecond,
		Observations:  10,
		Duplicates:    2,
		Rows:          24,
		CarriedOver:   3,
		ZeroPrices:    1,
		MissingSeries: 1,
	})
	RecordBatchMetrics(ctx, metrics, BatchMeasurement{
		BatchID:      "2014-06-09",
		Success:      false,
		Observations: 7,
		Rows:         99,
	})

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["batches_total"])
	assert.Equal(t, int64(17), sums["observations_total"])
	assert.Equal(t, int64(24), sums["panel_rows_total"], "rejected batches contribute no rows")
	assert.Equal(t, int64(2), sums["duplicate_observations_total"])
	assert.Equal(t, int64(3), sums["carried_over_cells_total"])
	assert.Equal(t, int64(1), sums["zero_prices_total"])
	assert.Equal(t, int64(1), sums["missing_series_total"])

	t.Run("nil metrics are ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordBatchMetrics(ctx, nil, BatchMeasurement{})
			RecordRunMetrics(ctx, nil, time.Second, 1, 0, false)
			RecordActiveRunChange(ctx, nil, 1)
			RecordExport(ctx, nil, "csv", 10, true)
			RecordHTTPRequest(ctx, nil, "/", "GET", 200, time.Millisecond)
		})
	})
}

func TestRecordRunAndExportMetrics(t *testing.T) {
	metrics, reader := testMetrics(t)
	ctx := context.Background()

	RecordActiveRunChange(ctx, metrics, 1)
	RecordRunMetrics(ctx, metrics, 2*time.Second, 3, 1, false)
	RecordRunMetrics(ctx, metrics, time.Second, 1, 0, true)
	RecordActiveRunChange(ctx, metrics, -1)
	RecordExport(ctx, metrics, "parquet", 2048, true)
	RecordExport(ctx, metrics, "csv", 100, false)
	RecordHTTPRequest(ctx, metrics, "/api/health", http.MethodGet, http.StatusOK, time.Millisecond)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["runs_total"])
	assert.Equal(t, int64(1), sums["run_cancellations_total"])
	assert.Equal(t, int64(0), sums["active_runs"])
	assert.Equal(t, int64(2148), sums["exported_bytes_total"])
	assert.Equal(t, int64(1), sums["uploads_total"])
	assert.Equal(t, int64(1), sums["http_requests_total"])
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "batch")
	traceID := TraceIDFromContext(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)

	SetSpanAttributes(ctx, map[string]interface{}{
		"batch.id": "b1",
		"rows":     4,
		"bytes":    int64(9),
		"mean":     1.5,
		"ok":       true,
		"stations": []string{"A"},
	})
	metrics, _ := testMetrics(t)
	RecordBatchMetrics(ctx, metrics, BatchMeasurement{BatchID: "b1", Success: true})
	RecordError(ctx, assert.AnError)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "b1", attrs["batch.id"])
	assert.Equal(t, "4", attrs["rows"])
	assert.Equal(t, "true", attrs["ok"])
	assert.Equal(t, "[A]", attrs["stations"])
	assert.Equal(t, "Error", spans[0].Status().Code.String())

	var events []string
	for _, ev := range spans[0].Events() {
		events = append(events, ev.Name)
	}
	assert.Contains(t, events, "batch.metrics_recorded")
	assert.Contains(t, events, "exception")

	t.Run("no span in context", func(t *testing.T) {
		assert.Empty(t, TraceIDFromContext(context.Background()))
		assert.NotPanics(t, func() {
			SetSpanAttributes(context.Background(), map[string]interface{}{"k": "v"})
			RecordError(context.Background(), assert.AnError)
		})
	})
}

// TestTracePropagation tests trace propagation across contexts
func TestTracePropagation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	tracer := otel.Tracer("propagation-test")
	ctx, parentSpan := tracer.Start(context.Background(), "run")
	defer parentSpan.End()

	_, childSpan := tracer.Start(ctx, "batch")
	defer childSpan.End()

	assert.Equal(t, parentSpan.SpanContext().TraceID(), childSpan.SpanContext().TraceID())
	assert.NotEqual(t, parentSpan.SpanContext().SpanID(), childSpan.SpanContext().SpanID())
}

func TestSystemMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	sm, err := NewSystemMetrics(mp.Meter("test"))
	require.NoError(t, err)

	stats := sm.Collect(context.Background())
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.CPUCount)
	assert.GreaterOrEqual(t, stats.UptimeSeconds, 0.0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var names []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.Contains(t, names, "system_goroutines")
	assert.Contains(t, names, "system_heap_inuse_bytes")

	t.Run("nil receiver only samples", func(t *testing.T) {
		var none *SystemMetrics
		assert.Positive(t, none.Collect(context.Background()).GoRoutines)
	})

	t.Run("collector stops", func(t *testing.T) {
		_, err := NewSystemMetricsCollector(mp.Meter("test"), 0)
		assert.Error(t, err)

		c, err := NewSystemMetricsCollector(mp.Meter("test"), 10*time.Millisecond)
		require.NoError(t, err)
		done := make(chan struct{})
		go func() {
			c.Start(context.Background())
			close(done)
		}()
		assert.Positive(t, c.Stats(context.Background()).CPUCount)
		c.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("collector did not stop")
		}
	})
}
