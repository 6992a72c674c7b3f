package websocket

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fuelpanel.websocket"

// OTelMetrics exports websocket activity through the global meter provider
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	connectionErrors   metric.Int64Counter

	messagesTotal metric.Int64Counter
	messageBytes  metric.Int64Counter

	runEvents       metric.Int64Counter
	droppedMessages metric.Int64Counter
	broadcasts      metric.Int64Counter
	queueDepth      metric.Int64Gauge
	clientCount     metric.Int64Gauge
}

// NewOTelMetrics creates the instruments on meter. A nil meter uses the
// global provider.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &OTelMetrics{}
	var err error

	if m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.connectionErrors, err = meter.Int64Counter("websocket_connection_errors_total",
		metric.WithDescription("Total number of WebSocket connection errors")); err != nil {
		return nil, err
	}
	if m.messagesTotal, err = meter.Int64Counter("websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages")); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter("websocket_message_bytes_total",
		metric.WithDescription("Total bytes of WebSocket messages"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.runEvents, err = meter.Int64Counter("websocket_run_events_total",
		metric.WithDescription("Run events published to WebSocket clients")); err != nil {
		return nil, err
	}
	if m.droppedMessages, err = meter.Int64Counter("websocket_dropped_messages_total",
		metric.WithDescription("Total number of dropped WebSocket messages")); err != nil {
		return nil, err
	}
	if m.broadcasts, err = meter.Int64Counter("websocket_broadcast_operations_total",
		metric.WithDescription("Total number of WebSocket broadcast operations")); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64Gauge("websocket_queue_depth",
		metric.WithDescription("Current depth of the broadcast queue")); err != nil {
		return nil, err
	}
	if m.clientCount, err = meter.Int64Gauge("websocket_client_count",
		metric.WithDescription("Current number of connected WebSocket clients")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConnection records a new connection
func (m *OTelMetrics) RecordConnection(ctx context.Context, remoteAddr string) {
	attrs := metric.WithAttributes(attribute.String("remote_addr", remoteAddr))
	m.connectionsTotal.Add(ctx, 1, attrs)
	m.connectionsActive.Add(ctx, 1)
}

// RecordDisconnection records a closed connection and its lifetime
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, lifetime time.Duration, reason string) {
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, lifetime.Seconds(),
		metric.WithAttributes(attribute.String("disconnect_reason", reason)))
}

// RecordConnectionError records a failed read, write or upgrade
func (m *OTelMetrics) RecordConnectionError(ctx context.Context, errorType string, err error) {
	m.connectionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.String("error", err.Error()),
	))
}

// RecordMessageSent records one outbound frame
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, size int64) {
	attrs := metric.WithAttributes(attribute.String("direction", "outbound"))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, size, attrs)
}

// RecordMessageReceived records one inbound frame
func (m *OTelMetrics) RecordMessageReceived(ctx context.Context, size int64) {
	attrs := metric.WithAttributes(attribute.String("direction", "inbound"))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, size, attrs)
}

// RecordRunEvent counts a published run event
func (m *OTelMetrics) RecordRunEvent(ctx context.Context, eventType, stage string) {
	m.runEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("stage", stage),
	))
}

// RecordDroppedMessage counts an event that never reached the queue
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, eventType, reason string) {
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("drop_reason", reason),
	))
}

// RecordBroadcast records one fan-out
func (m *OTelMetrics) RecordBroadcast(ctx context.Context, delivered, dropped, size int64) {
	m.broadcasts.Add(ctx, 1, metric.WithAttributes(
		attribute.Int64("delivered", delivered),
		attribute.Int64("dropped", dropped),
	))
	m.messageBytes.Add(ctx, size*delivered, metric.WithAttributes(attribute.String("direction", "broadcast")))
}

// RecordQueueDepth records the broadcast queue depth
func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	m.queueDepth.Record(ctx, depth)
}

// RecordClientCount records the number of connected clients
func (m *OTelMetrics) RecordClientCount(ctx context.Context, count int64) {
	m.clientCount.Record(ctx, count)
}

var (
	otelMu            sync.RWMutex
	globalOTelMetrics *OTelMetrics
)

// InitOTelMetrics installs the package-wide instruments
func InitOTelMetrics(meter metric.Meter) error {
	metrics, err := NewOTelMetrics(meter)
	if err != nil {
		return err
	}
	otelMu.Lock()
	globalOTelMetrics = metrics
	otelMu.Unlock()
	return nil
}

// GetOTelMetrics returns the installed instruments or nil
func GetOTelMetrics() *OTelMetrics {
	otelMu.RLock()
	defer otelMu.RUnlock()
	return globalOTelMetrics
}

// ResetOTelMetrics removes the installed instruments
func ResetOTelMetrics() {
	otelMu.Lock()
	globalOTelMetrics = nil
	otelMu.Unlock()
}
