package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, origins []string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	server := httptest.NewServer(Handler(hub, origins, nil))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHandlerStreamsRunEvents(t *testing.T) {
	hub := startHub(t)

	conn, _, err := dialHub(t, hub, nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, TypeConnection, welcome.Type)
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, heartbeat))

	hub.BroadcastUpdate("batch:complete", "processing", "running", map[string]interface{}{"batch_id": "2014-06-08"})

	var event Message
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "batch:complete", event.Type)
	assert.Equal(t, "processing", event.Stage)

	require.Eventually(t, func() bool {
		return hub.metrics.Snapshot().MessagesReceived == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHandlerOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		wantOK  bool
	}{
		{name: "no allow list", origins: nil, origin: "http://elsewhere.example", wantOK: true},
		{name: "allowed origin", origins: []string{"http://localhost:8080"}, origin: "http://localhost:8080", wantOK: true},
		{name: "missing origin header", origins: []string{"http://localhost:8080"}, origin: "", wantOK: true},
		{name: "rejected origin", origins: []string{"http://localhost:8080"}, origin: "http://evil.example", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := startHub(t)
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}

			conn, resp, err := dialHub(t, hub, tt.origins, header)
			if tt.wantOK {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, int64(1), hub.metrics.Snapshot().Errors["upgrade"])
		})
	}
}
