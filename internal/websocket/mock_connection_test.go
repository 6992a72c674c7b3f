package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var errConnClosed = errors.New("connection closed")

// mockConnection feeds ReadMessage from a channel and records every write
type mockConnection struct {
	mu       sync.Mutex
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once
	writes   []mockFrame
	writeErr error
	limit    int64
	pong     func(string) error
}

type mockFrame struct {
	Type int
	Data []byte
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		incoming: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, mockFrame{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.incoming:
		return websocket.TextMessage, data, nil
	case <-m.closed:
		return 0, nil, errConnClosed
	}
}

func (m *mockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	m.limit = limit
	m.mu.Unlock()
}

func (m *mockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	m.pong = h
	m.mu.Unlock()
}

func (m *mockConnection) RemoteAddr() string { return "127.0.0.1:9000" }

func (m *mockConnection) failWrites(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *mockConnection) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// textMessages decodes every text frame written so far
func (m *mockConnection) textMessages(t *testing.T) []Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Message
	for _, frame := range m.writes {
		if frame.Type != websocket.TextMessage {
			continue
		}
		var msg Message
		require.NoError(t, json.Unmarshal(frame.Data, &msg))
		out = append(out, msg)
	}
	return out
}

func (m *mockConnection) frameTypes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]int, 0, len(m.writes))
	for _, frame := range m.writes {
		types = append(types, frame.Type)
	}
	return types
}
