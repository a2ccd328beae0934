package monitor

import (
	"sync"
	"time"
)

// ProgressBar tracks progress of a long-running piece of work (typically
// "simulated time advanced so far") for display on the status endpoint,
// adapted from the teacher's monitoring.ProgressBar.
type ProgressBar struct {
	mu sync.Mutex

	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds amount to the in-progress count.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.InProgress += amount
}

// MoveInProgressToFinished moves amount from in-progress to finished.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// Snapshot returns a copy of the bar's fields safe to marshal without
// holding the bar's lock.
func (b *ProgressBar) Snapshot() ProgressBar {
	b.mu.Lock()
	defer b.mu.Unlock()

	return ProgressBar{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}
