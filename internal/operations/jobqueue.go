package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "fuelpanel/internal/errors"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrQueueFull is returned by Enqueue when no more jobs can be queued
var ErrQueueFull = errors.New("job queue is full")

// Job represents a queued run
type Job struct {
	ID          string      `json:"id"`
	Request     RunRequest  `json:"request"`
	Status      JobStatus   `json:"status"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Summary     *RunSummary `json:"summary,omitempty"`
}

// Runner executes a run
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunSummary, error)
}

// JobQueue executes runs asynchronously, one at a time and in the order
// they were enqueued, so the closing state chain is never interleaved.
type JobQueue struct {
	mu       sync.RWMutex
	jobs     chan *Job
	store    map[string]*Job
	runner   Runner
	logger   *slog.Logger
	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewJobQueue creates a job queue holding at most size pending jobs
func NewJobQueue(runner Runner, size int, logger *slog.Logger) *JobQueue {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		jobs:     make(chan *Job, size),
		store:    make(map[string]*Job),
		runner:   runner,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
	}
}

// Start begins processing jobs until ctx is done or Stop is called
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue")
	q.wg.Add(1)
	go q.worker(ctx)
}

// Stop gracefully shuts down the job queue
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")
	q.stopOnce.Do(func() { close(q.shutdown) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for the running job to finish")
	}
}

// Enqueue adds a run to the queue and returns its job
func (q *JobQueue) Enqueue(req RunRequest) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.store[job.ID] = job
	snapshot := job.copy()
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("trigger", req.Trigger),
			slog.Bool("only_new", req.OnlyNew))
		return snapshot, nil
	default:
		q.update(job, func(j *Job) {
			j.Status = JobStatusFailed
			j.Error = ErrQueueFull.Error()
		})
		return nil, ErrQueueFull
	}
}

// GetJob retrieves a copy of a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.store[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("job " + id)
	}
	return job.copy(), nil
}

// ListJobs returns copies of the most recent jobs, newest first. A limit of
// zero returns every job.
func (q *JobQueue) ListJobs(limit int) []*Job {
	q.mu.RLock()
	result := make([]*Job, 0, len(q.store))
	for _, job := range q.store {
		result = append(result, job.copy())
	}
	q.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (q *JobQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			q.logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			q.logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, job *Job) {
	logger := q.logger.With(slog.String("job_id", job.ID))
	q.update(job, func(j *Job) {
		now := time.Now()
		j.Status = JobStatusRunning
		j.StartedAt = &now
	})
	logger.Info("job started")

	summary, err := q.runner.Run(ctx, job.Request)

	q.update(job, func(j *Job) {
		now := time.Now()
		j.CompletedAt = &now
		j.Summary = summary
		j.Status = JobStatusCompleted
		if err != nil {
			j.Status = JobStatusFailed
			j.Error = err.Error()
		}
	})
	if err != nil {
		logger.Error("job failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("job completed")
}

func (q *JobQueue) update(job *Job, fn func(*Job)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn(job)
}

func (j *Job) copy() *Job {
	c := *j
	return &c
}
