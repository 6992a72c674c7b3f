package errors

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpanel/internal/shared/testutil"
)

func TestErrorMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		body       string
		wantStatus int
		wantLevel  slog.Level
		wantBody   bool
	}{
		{
			name:       "success",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) },
			wantStatus: http.StatusOK,
			wantLevel:  slog.LevelInfo,
		},
		{
			name: "client error logs sanitized body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			body:       `{"only_new":"yes","token":"abc"}`,
			wantStatus: http.StatusBadRequest,
			wantLevel:  slog.LevelWarn,
			wantBody:   true,
		},
		{
			name:       "panic",
			handler:    func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			wantStatus: http.StatusInternalServerError,
			wantLevel:  slog.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			mw := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/runs?x=1", strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(http.MethodGet, "/api/v1/runs?x=1", nil)
			}
			rec := httptest.NewRecorder()
			mw.Handler(tt.handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			records := logs.GetRecordsByLevel(tt.wantLevel)
			var found *testutil.LogRecord
			for i := range records {
				if records[i].Message == "http request" {
					found = &records[i]
				}
			}
			require.NotNil(t, found)
			assert.Equal(t, int64(tt.wantStatus), found.Attrs["status"])
			assert.Equal(t, "x=1", found.Attrs["query"])

			body, hasBody := found.Attrs["request_body"]
			assert.Equal(t, tt.wantBody, hasBody)
			if hasBody {
				assert.Contains(t, body, "[REDACTED]")
				assert.NotContains(t, body, "abc")
			}
		})
	}
}

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"redacts secrets", `{"secret_access_key":"k","bucket":"b"}`, `{"bucket":"b","secret_access_key":"[REDACTED]"}`},
		{"keeps clean json", `{"only_new":true}`, `{"only_new":true}`},
		{"passes non json", "station_uuid,name", "station_uuid,name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeRequestBody(tt.in))
		})
	}
}
