// Package pool brokers exclusive, short-lived use of device queues among
// concurrently running tasks.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/eapache/queue"

	"github.com/cwbudde/queuebench/internal/device"
)

var (
	// ErrEmptyPool is returned when a pool would start with no queues.
	ErrEmptyPool = errors.New("no device queues could be set up")
	// ErrDuplicateQueue is returned when the same handle is added twice.
	ErrDuplicateQueue = errors.New("queue added to pool twice")
	// ErrNotCheckedOut is returned when releasing a queue the pool did not hand out.
	ErrNotCheckedOut = errors.New("queue is not checked out from this pool")
	// ErrAcquireTimeout is returned when the acquire context ends before a queue is idle.
	ErrAcquireTimeout = errors.New("timed out waiting for an idle queue")
	// ErrDrained is returned by Acquire once every queue has left the pool.
	ErrDrained = errors.New("pool has been drained")
)

type member struct {
	queue      device.Queue
	checkedOut bool
	acquires   uint64
}

// QueuePool is a bounded set of queues with blocking acquire and release.
// The number of queues in circulation (idle plus checked out) never changes
// between New and TryDrain. Queues are identified by ID, which must be
// unique within a pool.
type QueuePool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    *queue.Queue
	members map[string]*member
}

// New creates a pool holding queues, all initially idle.
func New(queues []device.Queue) (*QueuePool, error) {
	if len(queues) == 0 {
		return nil, ErrEmptyPool
	}

	p := &QueuePool{
		idle:    queue.New(),
		members: make(map[string]*member, len(queues)),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, q := range queues {
		if q == nil {
			return nil, fmt.Errorf("%w: nil queue", ErrEmptyPool)
		}
		if _, dup := p.members[q.ID()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateQueue, q.ID())
		}
		p.members[q.ID()] = &member{queue: q}
		p.idle.Add(q)
	}
	return p, nil
}

// Acquire blocks until a queue is idle, then removes and returns it. The
// returned queue is held exclusively by the caller until Release. A context
// without deadline or cancellation makes Acquire wait indefinitely.
func (p *QueuePool) Acquire(ctx context.Context) (device.Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.idle.Length() == 0 && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}

	for p.idle.Length() == 0 {
		if len(p.members) == 0 {
			return nil, ErrDrained
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAcquireTimeout, err)
		}
		p.cond.Wait()
	}

	q := p.idle.Remove().(device.Queue)
	m := p.members[q.ID()]
	m.checkedOut = true
	m.acquires++
	return q, nil
}

// Release returns a queue obtained from Acquire. It must be called exactly
// once per successful Acquire.
func (p *QueuePool) Release(q device.Queue) error {
	if q == nil {
		return fmt.Errorf("%w: nil queue", ErrNotCheckedOut)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[q.ID()]
	if !ok || !m.checkedOut {
		return fmt.Errorf("%w: %s", ErrNotCheckedOut, q.ID())
	}
	m.checkedOut = false
	p.idle.Add(m.queue)
	p.cond.Signal()
	return nil
}

// TryDrain removes and returns every idle queue without blocking. Drained
// queues leave the pool for good; the caller owns and closes them.
func (p *QueuePool) TryDrain() []device.Queue {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]device.Queue, 0, p.idle.Length())
	for p.idle.Length() > 0 {
		q := p.idle.Remove().(device.Queue)
		delete(p.members, q.ID())
		out = append(out, q)
	}
	// Wake waiters so they observe a drained pool.
	p.cond.Broadcast()
	return out
}

// QueueStats describes one queue in the pool.
type QueueStats struct {
	ID         string       `json:"id"`
	Class      device.Class `json:"class"`
	Device     string       `json:"device"`
	CheckedOut bool         `json:"checkedOut"`
	Acquires   uint64       `json:"acquires"`
}

// Stats is a consistent snapshot of the pool.
type Stats struct {
	Total  int          `json:"total"`
	Idle   int          `json:"idle"`
	InUse  int          `json:"inUse"`
	Queues []QueueStats `json:"queues"`
}

// Stats returns a snapshot taken under the pool lock, queues sorted by ID.
func (p *QueuePool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Total:  len(p.members),
		Idle:   p.idle.Length(),
		Queues: make([]QueueStats, 0, len(p.members)),
	}
	for id, m := range p.members {
		q := m.queue
		if m.checkedOut {
			s.InUse++
		}
		s.Queues = append(s.Queues, QueueStats{
			ID:         id,
			Class:      q.Device().Class,
			Device:     q.Device().String(),
			CheckedOut: m.checkedOut,
			Acquires:   m.acquires,
		})
	}
	sort.Slice(s.Queues, func(i, j int) bool { return s.Queues[i].ID < s.Queues[j].ID })
	return s
}
