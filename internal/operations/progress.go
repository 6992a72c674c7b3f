package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks progress through the batches of a run
type ProgressTracker struct {
	Stage     string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
	now       func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(stage string, total int) *ProgressTracker {
	return &ProgressTracker{
		Stage:     stage,
		Total:     total,
		StartTime: time.Now(),
		now:       time.Now,
	}
}

// Increment increments the current progress by 1
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}
	return p.Current, p.Total, percentage, p.Message
}

// GetETA estimates the time remaining from the average batch duration
func (p *ProgressTracker) GetETA() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Current == 0 || p.Total == 0 {
		return "calculating..."
	}
	if p.Current >= p.Total {
		return "0 seconds"
	}

	elapsed := p.now().Sub(p.StartTime)
	rate := float64(p.Current) / elapsed.Seconds()
	if rate <= 0 {
		return "calculating..."
	}

	remaining := float64(p.Total-p.Current) / rate
	switch {
	case remaining < 60:
		return fmt.Sprintf("%.0f seconds", remaining)
	case remaining < 3600:
		return fmt.Sprintf("%.1f minutes", remaining/60)
	default:
		return fmt.Sprintf("%.1f hours", remaining/3600)
	}
}

// IsComplete returns true once every batch has been counted
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}
