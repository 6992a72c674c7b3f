package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"fuelpanel/internal/infrastructure"
)

// Message types owned by the hub itself. Run events use the names defined by
// the operations package.
const (
	TypeConnection = "connection"
	TypeHeartbeat  = "heartbeat"
)

const (
	sendBufferSize      = 256
	broadcastBufferSize = 256
	metricsInterval     = 30 * time.Second
)

// Message is the envelope every client receives
type Message struct {
	Type      string      `json:"type"`
	Stage     string      `json:"stage,omitempty"`
	Status    string      `json:"status,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Hub fans run events out to every connected client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics

	quit    chan struct{}
	running bool
	stopped bool
}

// NewHub creates a hub. Start must be called before clients register.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		metrics:    NewMetrics(),
		quit:       make(chan struct{}),
	}
}

// Start runs the hub loop and the periodic metrics report
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportMetrics()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub_stopped")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		close(client.send)
		return
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.RecordConnection()
	if m := GetOTelMetrics(); m != nil {
		m.RecordConnection(ctx, client.remoteAddr)
		m.RecordClientCount(ctx, int64(count))
	}
	h.logger.InfoContext(ctx, "client_registered",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("total_clients", count))

	welcome, err := json.Marshal(Message{
		Type:      TypeConnection,
		Status:    "connected",
		Data:      map[string]string{"client_id": client.id},
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- welcome:
	default:
		h.logger.WarnContext(ctx, "client_buffer_full", slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	lifetime := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(lifetime)
	if m := GetOTelMetrics(); m != nil {
		m.RecordDisconnection(ctx, lifetime, "normal")
		m.RecordClientCount(ctx, int64(count))
	}
	h.logger.InfoContext(ctx, "client_unregistered",
		slog.String("client_id", client.id),
		slog.Int("total_clients", count),
		slog.Duration("connection_duration", lifetime))
}

// deliver sends one message to every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) deliver(message []byte) {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.WarnContext(client.context(), "client_buffer_full_disconnecting",
			slog.String("client_id", client.id))
		h.removeClient(client)
	}

	h.metrics.RecordMessage("sent", int64(len(message)), len(slow) == 0)
	if m := GetOTelMetrics(); m != nil {
		m.RecordBroadcast(context.Background(), int64(delivered), int64(len(slow)), int64(len(message)))
	}
	h.logger.Debug("broadcast_delivered",
		slog.Int("clients", delivered),
		slog.Int("dropped_clients", len(slow)),
		slog.Int("size", len(message)))
}

// BroadcastUpdate queues a run event for all clients. Events are dropped when
// the broadcast queue is full so the caller never blocks.
func (h *Hub) BroadcastUpdate(eventType, stage, status string, data interface{}) {
	h.BroadcastUpdateWithTrace(eventType, stage, status, data, "")
}

// BroadcastUpdateWithTrace is BroadcastUpdate with a trace id on the envelope
func (h *Hub) BroadcastUpdateWithTrace(eventType, stage, status string, data interface{}, traceID string) {
	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}

	payload, err := json.Marshal(Message{
		Type:      eventType,
		Stage:     stage,
		Status:    status,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	})
	if err != nil {
		h.metrics.RecordError("marshal")
		h.logger.ErrorContext(ctx, "broadcast_marshal_failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()))
		return
	}

	if m := GetOTelMetrics(); m != nil {
		m.RecordRunEvent(ctx, eventType, stage)
	}

	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordDroppedMessage()
		if m := GetOTelMetrics(); m != nil {
			m.RecordDroppedMessage(ctx, eventType, "queue_full")
		}
		h.logger.WarnContext(ctx, "broadcast_queue_full",
			slog.String("event", eventType))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats is the hub's view for the status API
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	BytesSent        int64 `json:"bytes_sent"`
	DroppedMessages  int64 `json:"dropped_messages"`
	QueueDepth       int   `json:"queue_depth"`
}

// Stats returns current hub counters
func (h *Hub) Stats() HubStats {
	snap := h.metrics.Snapshot()
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: snap.TotalConnections,
		MessagesSent:     snap.MessagesSent,
		BytesSent:        snap.BytesSent,
		DroppedMessages:  snap.DroppedMessages,
		QueueDepth:       len(h.broadcast),
	}
}

// Stop closes every client and ends the hub loop. Stop is idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.running = false
	close(h.quit)

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			stats := h.Stats()
			h.metrics.RecordQueueDepth(int64(stats.QueueDepth))
			if m := GetOTelMetrics(); m != nil {
				m.RecordQueueDepth(context.Background(), int64(stats.QueueDepth))
			}
			h.logger.Info("hub_metrics",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent),
				slog.Int64("dropped_messages", stats.DroppedMessages),
				slog.Int("broadcast_queue", stats.QueueDepth))
		}
	}
}
