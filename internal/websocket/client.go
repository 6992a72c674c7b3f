package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fuelpanel/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send heartbeats
	maxMessageSize = 512
)

var heartbeat = []byte(`{"type":"heartbeat"}`)

// Client is a middleman between one websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
}

// NewClient creates a client for conn. traceID may be empty.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = hub.logger
	}
	id := uuid.New().String()
	logger = infrastructure.WithComponent(logger, "websocket.client").With(slog.String("client_id", id))
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client's generated id
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump consumes client frames until the connection fails. Only
// heartbeats are expected; anything else is counted and ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.logger.InfoContext(c.context(), "client_read_stopped",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordError("unexpected_close")
				c.logger.WarnContext(c.context(), "client_unexpected_close",
					slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(message)
		c.messagesReceived++
		c.hub.metrics.RecordMessage("received", int64(len(message)), true)
		if m := GetOTelMetrics(); m != nil {
			m.RecordMessageReceived(c.context(), int64(len(message)))
		}

		if bytes.Equal(message, heartbeat) {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
			continue
		}
		c.logger.DebugContext(c.context(), "client_message_ignored",
			slog.Int("size", len(message)))
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
// It returns when the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.InfoContext(c.context(), "client_write_stopped",
			slog.Int64("messages_sent", c.messagesSent),
			slog.Int64("bytes_sent", c.bytesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.write(message) {
				return
			}

			// Drain what queued up meanwhile, one frame per message
			n := len(c.send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if !c.write(queued) {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.context(), "client_ping_failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (c *Client) write(message []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.hub.metrics.RecordError("write")
		if m := GetOTelMetrics(); m != nil {
			m.RecordConnectionError(c.context(), "write", err)
		}
		c.logger.ErrorContext(c.context(), "client_write_failed",
			slog.String("error", err.Error()))
		return false
	}
	c.messagesSent++
	c.bytesSent += int64(len(message))
	if m := GetOTelMetrics(); m != nil {
		m.RecordMessageSent(c.context(), int64(len(message)))
	}
	return true
}

// Serve registers the client and starts its pumps
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.WritePump()
	go c.ReadPump()
}
