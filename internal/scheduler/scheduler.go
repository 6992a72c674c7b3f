// Package scheduler re-runs the processor periodically for newly arrived batches.
package scheduler

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"fuelpanel/internal/operations"
)

// TriggerSchedule marks runs started by the scheduler
const TriggerSchedule = "schedule"

// Queue is the part of the job queue the scheduler needs
type Queue interface {
	Enqueue(req operations.RunRequest) (*operations.Job, error)
	ListJobs(limit int) []*operations.Job
}

// Scheduler periodically queues incremental runs
type Scheduler struct {
	scheduler *gocron.Scheduler
	queue     Queue
	interval  time.Duration
	logger    *slog.Logger

	queued  atomic.Int64
	skipped atomic.Int64
}

// New creates a scheduler queueing a new-batches-only run every interval
func New(queue Queue, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		queue:     queue,
		interval:  interval,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run is queued one interval from now.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.tick)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

// tick queues one run unless a scheduled run is still waiting
func (s *Scheduler) tick() {
	for _, job := range s.queue.ListJobs(0) {
		if job.Request.Trigger == TriggerSchedule && job.Status == operations.JobStatusPending {
			s.skipped.Add(1)
			s.logger.Debug("scheduled run still pending, skipping", slog.String("job_id", job.ID))
			return
		}
	}

	job, err := s.queue.Enqueue(operations.RunRequest{OnlyNew: true, Trigger: TriggerSchedule})
	if err != nil {
		s.skipped.Add(1)
		s.logger.Warn("failed to queue scheduled run", slog.String("error", err.Error()))
		return
	}
	s.queued.Add(1)
	s.logger.Info("scheduled run queued", slog.String("job_id", job.ID))
}

// NextRun returns when the next run will be queued
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Counts reports how many ticks queued a run and how many were skipped
func (s *Scheduler) Counts() (queued, skipped int64) {
	return s.queued.Load(), s.skipped.Load()
}

// Stop stops the scheduler and cancels any future jobs
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
		s.logger.Info("scheduler stopped")
	}
}
