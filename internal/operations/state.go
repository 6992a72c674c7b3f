package operations

import (
	"sync"
	"time"
)

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run has finished
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// RunState tracks a run while it executes. It is safe for concurrent use
// so status requests can read it while batches are processed.
type RunState struct {
	mu sync.RWMutex

	ID        string
	Status    RunStatus
	Stage     string
	StartTime time.Time
	EndTime   *time.Time

	Total     int
	Processed int
	Failed    int
	Err       error
}

// NewRunState creates a pending run state
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
	}
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = RunStatusRunning
	s.StartTime = time.Now()
}

// SetStage records the stage the run is in
func (s *RunState) SetStage(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stage = stage
}

// SetTotal records the number of batches the run will process
func (s *RunState) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total = total
}

// BatchDone counts a finished batch
func (s *RunState) BatchDone(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.Processed++
	} else {
		s.Failed++
	}
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.finish(RunStatusCompleted, nil)
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.finish(RunStatusFailed, err)
}

// Cancel marks the run as cancelled
func (s *RunState) Cancel() {
	s.finish(RunStatusCancelled, nil)
}

func (s *RunState) finish(status RunStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.EndTime = &now
	s.Status = status
	s.Err = err
}

// Duration returns the duration of the run so far
func (s *RunState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// RunSnapshot is a point-in-time copy of a run state
type RunSnapshot struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	Error     string     `json:"error,omitempty"`
}

// Snapshot returns a copy of the state
func (s *RunState) Snapshot() RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := RunSnapshot{
		ID:        s.ID,
		Status:    s.Status,
		Stage:     s.Stage,
		StartedAt: s.StartTime,
		Total:     s.Total,
		Processed: s.Processed,
		Failed:    s.Failed,
	}
	if s.EndTime != nil {
		end := *s.EndTime
		snap.EndedAt = &end
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	return snap
}
