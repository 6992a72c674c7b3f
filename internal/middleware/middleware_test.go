package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpanel/internal/infrastructure"
	"fuelpanel/internal/shared/testutil"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
	}{
		{name: "generated", inbound: ""},
		{name: "propagated", inbound: "req-from-proxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenReqID, seenTrace string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenReqID = GetReqID(r.Context())
				seenTrace = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.NotEmpty(t, seenReqID)
			assert.Equal(t, seenReqID, rec.Header().Get(RequestIDHeader))
			assert.Equal(t, seenReqID, seenTrace)
			if tt.inbound != "" {
				assert.Equal(t, tt.inbound, seenReqID)
			} else {
				assert.Len(t, seenReqID, 36)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 2, logger)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "/errors/rate-limit-exceeded")
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "rate limit exceeded")
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{
			name:       "open when no origins configured",
			origin:     "http://dashboard.local",
			method:     http.MethodGet,
			wantOrigin: "http://dashboard.local",
			wantStatus: http.StatusOK,
		},
		{
			name:       "listed origin",
			allowed:    []string{"http://dashboard.local"},
			origin:     "http://DASHBOARD.local",
			method:     http.MethodGet,
			wantOrigin: "http://DASHBOARD.local",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unlisted origin gets no allow header",
			allowed:    []string{"http://dashboard.local"},
			origin:     "http://evil.example",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			origin:     "http://dashboard.local",
			method:     http.MethodOptions,
			wantOrigin: "http://dashboard.local",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(CORSConfig{AllowedOrigins: tt.allowed})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/runs/latest", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}
