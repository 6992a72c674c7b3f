package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpanel/internal/config"
	"fuelpanel/internal/operations"
	"fuelpanel/internal/shared/testutil"
)

func newTestApp(t *testing.T, opts Options) *Application {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	paths, err := cfg.Paths.Resolve(t.TempDir())
	require.NoError(t, err)

	_, err = testutil.NewBatchFixtures(paths.InputDir).TwoDays()
	require.NoError(t, err)

	logger := slog.New(testutil.NewBufferedSlogHandler(nil))
	a, err := NewApplication(context.Background(), cfg, paths, logger, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestRunOnce(t *testing.T) {
	a := newTestApp(t, Options{})
	assert.Nil(t, a.Server)
	assert.Nil(t, a.Scheduler)

	summary, err := a.RunOnce(context.Background(), operations.RunRequest{Trigger: "cli"})
	require.NoError(t, err)

	assert.Equal(t, operations.RunStatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Discovered)
	require.Len(t, summary.Processed, 2)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, filepath.Join(a.Paths.OutputDir, "2014", "06", "2014-06-09-prices.csv"), summary.Processed[1].OutputPath)
	assert.FileExists(t, summary.Processed[1].OutputPath)
	assert.FileExists(t, a.Paths.MetadataCSV)
	assert.FileExists(t, a.Paths.ClosingHistory)

	// Nothing new arrived, so an incremental run has nothing to do
	again, err := a.RunOnce(context.Background(), operations.RunRequest{OnlyNew: true, Trigger: "cli"})
	require.NoError(t, err)
	assert.Zero(t, again.Discovered)
}

func TestNewApplicationOptions(t *testing.T) {
	a := newTestApp(t, Options{Serve: true, Every: time.Minute})
	require.NotNil(t, a.Server)
	require.NotNil(t, a.Router)
	require.NotNil(t, a.Scheduler)
	assert.Equal(t, ":0", a.Server.Addr)
	assert.Equal(t, a.Config.Server.ReadTimeout, a.Server.ReadTimeout)
}

func TestRouterServesRunState(t *testing.T) {
	a := newTestApp(t, Options{Serve: true})

	_, err := a.RunOnce(context.Background(), operations.RunRequest{Trigger: "cli"})
	require.NoError(t, err)

	tests := []struct {
		path     string
		wantCode int
		check    func(t *testing.T, body string)
	}{
		{
			path:     "/api/health",
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, "ok", resp["status"])
				assert.Equal(t, config.AppVersion, resp["version"])
			},
		},
		{
			path:     "/api/v1/runs/latest",
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var resp operations.RunSummary
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, operations.RunStatusCompleted, resp.Status)
				assert.Equal(t, 2, resp.Discovered)
			},
		},
		{
			path:     "/api/v1/closing?station=B",
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"diesel":1.409`)
			},
		},
		{
			path:     "/metrics",
			wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, "runs_total")
			},
		},
		{path: "/api/v1/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec.Body.String())
			}
		})
	}
}

func TestStartQueuesInitialRun(t *testing.T) {
	a := newTestApp(t, Options{Serve: true})

	require.NoError(t, a.Start(context.Background(), operations.RunRequest{Trigger: "startup"}))
	assert.NotEqual(t, ":0", a.Server.Addr)

	require.Eventually(t, func() bool {
		summary, ok := a.Manager.Latest()
		return ok && summary.Status == operations.RunStatusCompleted
	}, 10*time.Second, 20*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/jobs", hostPort(a.Server.Addr)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var jobs struct {
		Jobs  []operations.Job `json:"jobs"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Equal(t, 1, jobs.Total)
	assert.Equal(t, "startup", jobs.Jobs[0].Request.Trigger)

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}

// hostPort turns a listener address such as [::]:1234 into one a client
// can dial
func hostPort(addr string) string {
	i := strings.LastIndex(addr, ":")
	return "127.0.0.1" + addr[i:]
}
