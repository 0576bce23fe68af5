package bench

import (
	"context"
	"time"
)

// Progress is a point-in-time view of a running batch.
type Progress struct {
	Completed uint64        `json:"completed"`
	Total     uint64        `json:"total"`
	Elapsed   time.Duration `json:"elapsed"`
	// Rate is completed tasks per second since the batch started.
	Rate float64 `json:"rate"`
}

// Monitor polls a Counter on a fixed interval and reports progress until the
// counter reaches Total, done is closed or ctx ends.
type Monitor struct {
	Counter  *Counter
	Total    uint64
	Interval time.Duration
	Report   func(Progress)
}

// Run blocks; callers start it on its own goroutine.
func (m *Monitor) Run(ctx context.Context, start time.Time, done <-chan struct{}) {
	if m.Report == nil || m.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		p := m.snapshot(start)
		if p.Completed >= m.Total {
			return
		}
		m.Report(p)

		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) snapshot(start time.Time) Progress {
	elapsed := time.Since(start)
	completed := m.Counter.Load()

	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(completed) / secs
	}
	return Progress{
		Completed: completed,
		Total:     m.Total,
		Elapsed:   elapsed,
		Rate:      rate,
	}
}
