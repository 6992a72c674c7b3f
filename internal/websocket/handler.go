package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"fuelpanel/internal/infrastructure"
)

// Handler upgrades HTTP requests and attaches the connection to the hub.
// An empty allowedOrigins list accepts every origin.
func Handler(hub *Hub, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = hub.logger
	}
	logger = infrastructure.WithComponent(logger, "websocket.handler")

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 || allowed[origin] {
				return true
			}
			logger.WarnContext(r.Context(), "websocket_origin_rejected",
				slog.String("origin", origin))
			return false
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.metrics.RecordError("upgrade")
			logger.ErrorContext(ctx, "websocket_upgrade_failed",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr))
			return
		}

		client := NewClient(hub, NewConnectionWrapper(conn), infrastructure.GetTraceID(ctx), logger)
		logger.InfoContext(ctx, "websocket_connected",
			slog.String("client_id", client.ID()),
			slog.String("remote_addr", client.remoteAddr))
		client.Serve()
	}
}
