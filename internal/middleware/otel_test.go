package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/shared/testutil"
)

func TestOTelMiddlewareRecordsRoutePattern(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meterProvider.Shutdown(context.Background()) })

	spans := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tracerProvider.Shutdown(context.Background()) })

	metrics, err := infrastructure.CreateBusinessMetrics(meterProvider.Meter(infrastructure.MeterName))
	require.NoError(t, err)

	logger, _ := testutil.NewTestLogger(t)
	mw := NewOTelMiddleware(tracerProvider.Tracer("test"), metrics, logger)

	var traceID string
	r := chi.NewRouter()
	r.Use(mw.Handler)
	r.Get("/api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		traceID = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/jobs/def", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var points []metricdata.DataPoint[int64]
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "http_requests_total" {
				points = m.Data.(metricdata.Sum[int64]).DataPoints
			}
		}
	}
	require.Len(t, points, 1, "both requests share one route series")
	assert.Equal(t, int64(2), points[0].Value)
	route, ok := points[0].Attributes.Value(attribute.Key("http.route"))
	require.True(t, ok)
	assert.Equal(t, "/api/v1/jobs/{id}", route.AsString())
	status, _ := points[0].Attributes.Value(attribute.Key("http.status_code"))
	assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "GET /api/v1/jobs/{id}", ended[0].Name())
	assert.Equal(t, ended[1].SpanContext().TraceID().String(), traceID)
}

func TestOTelMiddlewareWithoutMetrics(t *testing.T) {
	mw := NewOTelMiddleware(nil, nil, nil)
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "10.0.0.1"}, want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.2"}, want: "10.0.0.2"},
		{name: "remote addr", want: "192.0.2.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetRealIP(req))
		})
	}
}
