package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

// ErrDispatcherClosed is returned when work is submitted after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Runnable is a unit of work the dispatcher can execute.
type Runnable interface {
	Run(ctx context.Context) error
}

// Summary counts the outcome of every task handed to a dispatcher.
type Summary struct {
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Failures  []error `json:"-"`
}

// Dispatcher runs tasks on a fixed number of worker goroutines. Submitted
// tasks wait in an unbounded FIFO until a worker is free. Tasks carry no
// ordering guarantee relative to each other.
type Dispatcher struct {
	ctx     context.Context
	policy  FailurePolicy
	logger  *slog.Logger
	workers int

	mu          sync.Mutex
	cond        *sync.Cond
	pending     *queue.Queue
	outstanding int
	closed      bool
	aborted     bool
	summary     Summary

	wg sync.WaitGroup
}

// NewDispatcher starts workers goroutines. Cancelling ctx skips tasks that
// have not started; a started task always runs to completion.
func NewDispatcher(ctx context.Context, workers int, policy FailurePolicy, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = ContinueOnError
	}

	d := &Dispatcher{
		ctx:     ctx,
		policy:  policy,
		logger:  logger,
		workers: workers,
		pending: queue.New(),
	}
	d.cond = sync.NewCond(&d.mu)

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker(i)
	}
	return d
}

// Workers returns the size of the worker pool.
func (d *Dispatcher) Workers() int { return d.workers }

// DispatchAll hands tasks to the workers and returns without waiting for them.
func (d *Dispatcher) DispatchAll(tasks ...Runnable) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}
	for _, t := range tasks {
		d.pending.Add(t)
	}
	d.outstanding += len(tasks)
	d.cond.Broadcast()
	return nil
}

// Wait blocks until every task dispatched so far has finished or been skipped.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.outstanding > 0 && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			d.mu.Lock()
			d.cond.Broadcast()
			d.mu.Unlock()
		})
		defer stop()
	}

	for d.outstanding > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.cond.Wait()
	}
	return nil
}

// waitIdle blocks until every task dispatched so far has finished or been skipped.
func (d *Dispatcher) waitIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.outstanding > 0 {
		d.cond.Wait()
	}
}

// Shutdown stops accepting work, lets the workers finish every queued and
// running task, and returns once all workers have exited.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
}

// Summary returns a copy of the outcome counters.
func (d *Dispatcher) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.summary
	s.Failures = append([]error(nil), d.summary.Failures...)
	return s
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for d.pending.Length() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.pending.Length() == 0 {
			d.mu.Unlock()
			return
		}
		task := d.pending.Remove().(Runnable)
		skip := d.aborted || d.ctx.Err() != nil
		d.mu.Unlock()

		if skip {
			d.finish(nil, true)
			continue
		}

		// Started tasks are not cancellable.
		err := runTask(context.WithoutCancel(d.ctx), task)
		if err != nil {
			d.logger.Error("Task failed", "worker", id, "error", err)
		}
		d.finish(err, false)
	}
}

func (d *Dispatcher) finish(err error, skipped bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case skipped:
		d.summary.Skipped++
	case err != nil:
		d.summary.Failed++
		d.summary.Failures = append(d.summary.Failures, err)
		if d.policy == AbortOnError && !d.aborted {
			d.aborted = true
			d.logger.Warn("Aborting batch after task failure", "pending", d.pending.Length())
		}
	default:
		d.summary.Completed++
	}

	d.outstanding--
	if d.outstanding == 0 {
		d.cond.Broadcast()
	}
}

// runTask converts a panic into an error so one bad task cannot kill a worker.
func runTask(ctx context.Context, t Runnable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.Run(ctx)
}
