package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelpanel/internal/operations"
	"fuelpanel/internal/shared/testutil"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []*operations.Job
	err  error
}

func (q *fakeQueue) Enqueue(req operations.RunRequest) (*operations.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	job := &operations.Job{ID: "j", Request: req, Status: operations.JobStatusPending, CreatedAt: time.Now()}
	q.jobs = append(q.jobs, job)
	return job, nil
}

func (q *fakeQueue) ListJobs(limit int) []*operations.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*operations.Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		c := *j
		out = append(out, &c)
	}
	return out
}

func (q *fakeQueue) finishAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		j.Status = operations.JobStatusCompleted
	}
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func TestSchedulerTick(t *testing.T) {
	tests := []struct {
		name        string
		existing    []*operations.Job
		enqueueErr  error
		wantQueued  int64
		wantSkipped int64
	}{
		{name: "empty queue", wantQueued: 1},
		{
			name:       "previous scheduled run finished",
			existing:   []*operations.Job{{Request: operations.RunRequest{Trigger: TriggerSchedule}, Status: operations.JobStatusCompleted}},
			wantQueued: 1,
		},
		{
			name:       "api run pending",
			existing:   []*operations.Job{{Request: operations.RunRequest{Trigger: "api"}, Status: operations.JobStatusPending}},
			wantQueued: 1,
		},
		{
			name:        "scheduled run pending",
			existing:    []*operations.Job{{ID: "p", Request: operations.RunRequest{Trigger: TriggerSchedule}, Status: operations.JobStatusPending}},
			wantSkipped: 1,
		},
		{name: "queue full", enqueueErr: operations.ErrQueueFull, wantSkipped: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			q := &fakeQueue{jobs: tt.existing, err: tt.enqueueErr}
			s := New(q, time.Minute, logger)

			s.tick()

			queued, skipped := s.Counts()
			assert.Equal(t, tt.wantQueued, queued)
			assert.Equal(t, tt.wantSkipped, skipped)
			if tt.wantQueued == 1 {
				last := q.jobs[len(q.jobs)-1]
				assert.True(t, last.Request.OnlyNew)
				assert.Equal(t, TriggerSchedule, last.Request.Trigger)
			}
		})
	}
}

func TestSchedulerRunsPeriodically(t *testing.T) {
	q := &fakeQueue{}
	s := New(q, 50*time.Millisecond, slogQuiet())
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	// Nothing is queued before the first interval elapses
	assert.Equal(t, 0, q.count())
	assert.True(t, s.NextRun().After(time.Now().Add(-time.Millisecond)))

	require.Eventually(t, func() bool { return q.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	q.finishAll()
	require.Eventually(t, func() bool { return q.count() >= 2 }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	s := New(&fakeQueue{}, 0, nil)
	err := s.Start()
	require.Error(t, err)
	assert.False(t, errors.Is(err, operations.ErrQueueFull))
}

// slogQuiet captures records without t.Logf so gocron goroutines may log
// after the test returns
func slogQuiet() *slog.Logger {
	return slog.New(testutil.NewBufferedSlogHandler(nil))
}
