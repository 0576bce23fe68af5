package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/queuebench/internal/device"
	"github.com/cwbudde/queuebench/internal/kernel"
)

// ErrKernelExecution wraps a device-side failure of submitted work.
var ErrKernelExecution = errors.New("kernel execution failed")

// QueueSource hands out exclusive use of queues. *pool.QueuePool implements it.
type QueueSource interface {
	Acquire(ctx context.Context) (device.Queue, error)
	Release(q device.Queue) error
}

// Task is one unit of dispatched work. It shares only the queue source and
// the counter with other tasks; its buffer is private.
type Task struct {
	ID             uuid.UUID
	Queues         QueueSource
	Counter        *Counter
	Kernel         kernel.Kernel
	BufferSize     int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

// NewTask creates a task with a fresh id.
func NewTask(queues QueueSource, counter *Counter, k kernel.Kernel, bufferSize int) *Task {
	return &Task{
		ID:         uuid.New(),
		Queues:     queues,
		Counter:    counter,
		Kernel:     k,
		BufferSize: bufferSize,
	}
}

// Run fills a work buffer, acquires a queue, runs the kernel on it and waits
// for completion, releases the queue and bumps the counter. The queue is
// released on every path once acquired, and the counter is incremented last.
func (t *Task) Run(ctx context.Context) (err error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer t.Counter.Inc()

	buf := kernel.NewBuffer(t.BufferSize)

	acquireCtx := ctx
	if t.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, t.AcquireTimeout)
		defer cancel()
	}

	q, err := t.Queues.Acquire(acquireCtx)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.ID, err)
	}
	defer func() {
		if rerr := t.Queues.Release(q); rerr != nil {
			err = errors.Join(err, fmt.Errorf("task %s: release %s: %w", t.ID, q.ID(), rerr))
		}
	}()

	logger.Debug("Task acquired queue", "task_id", t.ID, "queue", q.ID())

	if werr := q.Submit(t.Kernel, buf).Wait(); werr != nil {
		return fmt.Errorf("task %s on %s: %w: %w", t.ID, q.ID(), ErrKernelExecution, werr)
	}
	return nil
}
