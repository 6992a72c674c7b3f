package websocket

import (
	"sync"
	"time"
)

const connectionWindow = 100

// Metrics tracks in-process websocket counters for the status API
type Metrics struct {
	mu sync.RWMutex

	totalConnections  int64
	activeConnections int64
	maxConcurrent     int64
	connectionTimes   []time.Duration

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64
	messageErrors    int64
	droppedMessages  int64

	avgQueueDepth int64
	maxQueueDepth int64

	errorsByType map[string]int64
	lastReset    time.Time
}

// MetricsSnapshot is a point-in-time copy of Metrics
type MetricsSnapshot struct {
	TotalConnections  int64            `json:"total_connections"`
	ActiveConnections int64            `json:"active_connections"`
	MaxConcurrent     int64            `json:"max_concurrent"`
	AvgConnection     time.Duration    `json:"avg_connection_ns"`
	MessagesSent      int64            `json:"messages_sent"`
	MessagesReceived  int64            `json:"messages_received"`
	BytesSent         int64            `json:"bytes_sent"`
	BytesReceived     int64            `json:"bytes_received"`
	MessageErrors     int64            `json:"message_errors"`
	DroppedMessages   int64            `json:"dropped_messages"`
	AvgQueueDepth     int64            `json:"avg_queue_depth"`
	MaxQueueDepth     int64            `json:"max_queue_depth"`
	Errors            map[string]int64 `json:"errors"`
	Uptime            time.Duration    `json:"uptime_ns"`
}

// NewMetrics creates zeroed metrics
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByType:    make(map[string]int64),
		connectionTimes: make([]time.Duration, 0, connectionWindow),
		lastReset:       time.Now(),
	}
}

// RecordConnection records a new connection
func (m *Metrics) RecordConnection() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalConnections++
	m.activeConnections++
	if m.activeConnections > m.maxConcurrent {
		m.maxConcurrent = m.activeConnections
	}
}

// RecordDisconnection records a disconnection and its lifetime
func (m *Metrics) RecordDisconnection(lifetime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeConnections > 0 {
		m.activeConnections--
	}
	m.connectionTimes = append(m.connectionTimes, lifetime)
	if len(m.connectionTimes) > connectionWindow {
		m.connectionTimes = m.connectionTimes[1:]
	}
}

// RecordMessage records one message in direction "sent" or "received"
func (m *Metrics) RecordMessage(direction string, size int64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch direction {
	case "sent":
		m.messagesSent++
		m.bytesSent += size
	case "received":
		m.messagesReceived++
		m.bytesReceived += size
	}
	if !success {
		m.messageErrors++
	}
}

// RecordError counts an error by type
func (m *Metrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByType[errorType]++
}

// RecordQueueDepth folds a queue depth sample into a moving average
func (m *Metrics) RecordQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if depth > m.maxQueueDepth {
		m.maxQueueDepth = depth
	}
	if m.avgQueueDepth == 0 {
		m.avgQueueDepth = depth
	} else {
		m.avgQueueDepth = (m.avgQueueDepth*9 + depth) / 10
	}
}

// RecordDroppedMessage counts a message that never reached the queue
func (m *Metrics) RecordDroppedMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedMessages++
}

// Snapshot copies the current counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]int64, len(m.errorsByType))
	for k, v := range m.errorsByType {
		errs[k] = v
	}

	var avg time.Duration
	if len(m.connectionTimes) > 0 {
		var total time.Duration
		for _, d := range m.connectionTimes {
			total += d
		}
		avg = total / time.Duration(len(m.connectionTimes))
	}

	return MetricsSnapshot{
		TotalConnections:  m.totalConnections,
		ActiveConnections: m.activeConnections,
		MaxConcurrent:     m.maxConcurrent,
		AvgConnection:     avg,
		MessagesSent:      m.messagesSent,
		MessagesReceived:  m.messagesReceived,
		BytesSent:         m.bytesSent,
		BytesReceived:     m.bytesReceived,
		MessageErrors:     m.messageErrors,
		DroppedMessages:   m.droppedMessages,
		AvgQueueDepth:     m.avgQueueDepth,
		MaxQueueDepth:     m.maxQueueDepth,
		Errors:            errs,
		Uptime:            time.Since(m.lastReset),
	}
}

// Reset zeroes every counter
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalConnections, m.activeConnections, m.maxConcurrent = 0, 0, 0
	m.messagesSent, m.messagesReceived = 0, 0
	m.bytesSent, m.bytesReceived = 0, 0
	m.messageErrors, m.droppedMessages = 0, 0
	m.avgQueueDepth, m.maxQueueDepth = 0, 0
	m.connectionTimes = make([]time.Duration, 0, connectionWindow)
	m.errorsByType = make(map[string]int64)
	m.lastReset = time.Now()
}
