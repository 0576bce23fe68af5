package bench

import "sync/atomic"

// Counter is the shared completion tally. It is only ever changed by atomic
// increments and may be read from any goroutine.
type Counter struct {
	n atomic.Uint64
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 { return c.n.Add(1) }

// Load returns the current value.
func (c *Counter) Load() uint64 { return c.n.Load() }
