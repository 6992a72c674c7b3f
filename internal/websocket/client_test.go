package websocket

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientReadPumpCountsFrames(t *testing.T) {
	hub := startHub(t)
	_, conn := connectClient(t, hub)

	conn.incoming <- heartbeat
	conn.incoming <- []byte(`{"type":"subscribe"}`)

	require.Eventually(t, func() bool {
		return hub.metrics.Snapshot().MessagesReceived == 2
	}, time.Second, 5*time.Millisecond)

	conn.mu.Lock()
	assert.Equal(t, int64(maxMessageSize), conn.limit)
	assert.NotNil(t, conn.pong)
	conn.mu.Unlock()
	assert.Equal(t, 1, hub.ClientCount())
}

func TestClientWriteFailureClosesConnection(t *testing.T) {
	hub := startHub(t)
	_, conn := connectClient(t, hub)

	conn.failWrites(errors.New("broken pipe"))
	hub.BroadcastUpdate("run:progress", "processing", "running", nil)

	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), hub.metrics.Snapshot().Errors["write"])
}
