package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/queuebench/internal/device"
	"github.com/cwbudde/queuebench/internal/kernel"
	"github.com/cwbudde/queuebench/internal/pool"
)

// Report is the outcome of one benchmark run.
type Report struct {
	RunID          string            `json:"runId"`
	Config         Config            `json:"config"`
	Platform       string            `json:"platform"`
	Kernel         string            `json:"kernel"`
	Queues         []pool.QueueStats `json:"queues"`
	Counter        uint64            `json:"counter"`
	Summary        Summary           `json:"summary"`
	Drained        int               `json:"drained"`
	Elapsed        time.Duration     `json:"elapsed"`
	TasksPerSecond float64           `json:"tasksPerSecond"`
}

// Harness wires a platform, a kernel and a ranker into a benchmark run.
type Harness struct {
	Config   Config
	Platform device.Platform
	Kernel   kernel.Kernel
	Ranker   device.Ranker
	Logger   *slog.Logger
	// OnProgress, when set, receives a report every Config.ProgressInterval.
	OnProgress func(Progress)
}

// NewHarness resolves the kernel and ranker named by cfg.
func NewHarness(cfg Config, platform device.Platform, logger *slog.Logger) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k, err := kernel.ByName(cfg.Kernel, cfg.Iterations)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		Config:   cfg,
		Platform: platform,
		Kernel:   k,
		Ranker:   device.NewAcceleratorRanker(cfg.DisfavoredVendors...),
		Logger:   logger,
	}, nil
}

// Run opens the queues, dispatches Config.Tasks tasks, waits for all of them,
// then drains and closes every queue. It returns pool.ErrEmptyPool (wrapped)
// without dispatching anything when no queue could be opened. When tasks
// fail, the report is returned together with an error wrapping the first
// failure.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	cfg := h.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)

	ranker := h.Ranker
	if ranker == nil {
		ranker = device.NewAcceleratorRanker(cfg.DisfavoredVendors...)
	}

	queues := device.OpenQueues(h.Platform, cfg.Queues, ranker, logger)
	qp, err := pool.New(queues)
	if err != nil {
		device.CloseAll(queues, logger)
		return nil, fmt.Errorf("startup: %w", err)
	}
	logger.Info("Queue pool ready", "queues", len(queues), "workers", cfg.Workers, "tasks", cfg.Tasks)

	var counter Counter
	d := NewDispatcher(ctx, cfg.Workers, cfg.FailurePolicy, logger)

	tasks := make([]Runnable, cfg.Tasks)
	for i := range tasks {
		t := NewTask(qp, &counter, h.Kernel, cfg.BufferSize)
		t.AcquireTimeout = cfg.AcquireTimeout
		t.Logger = logger
		tasks[i] = t
	}

	start := time.Now()
	if err := d.DispatchAll(tasks...); err != nil {
		d.Shutdown()
		device.CloseAll(qp.TryDrain(), logger)
		return nil, err
	}

	done := make(chan struct{})
	monitorDone := make(chan struct{})
	monitor := &Monitor{
		Counter:  &counter,
		Total:    uint64(cfg.Tasks),
		Interval: cfg.ProgressInterval,
		Report:   h.OnProgress,
	}
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx, start, done)
	}()

	// Teardown only starts after every task has finished or been skipped.
	d.waitIdle()
	elapsed := time.Since(start)
	close(done)
	<-monitorDone
	d.Shutdown()

	stats := qp.Stats()
	if stats.InUse != 0 {
		logger.Error("Queues still checked out at teardown", "in_use", stats.InUse)
	}
	drained := qp.TryDrain()
	device.CloseAll(drained, logger)

	summary := d.Summary()
	report := &Report{
		RunID:    runID,
		Config:   cfg,
		Platform: h.Platform.Name(),
		Kernel:   h.Kernel.Name(),
		Queues:   stats.Queues,
		Counter:  counter.Load(),
		Summary:  summary,
		Drained:  len(drained),
		Elapsed:  elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		report.TasksPerSecond = float64(summary.Completed) / secs
	}

	logger.Info("Run complete",
		"elapsed", elapsed,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"tasks_per_second", fmt.Sprintf("%.2f", report.TasksPerSecond),
	)

	if err := ctx.Err(); err != nil && summary.Skipped > 0 {
		return report, fmt.Errorf("run interrupted, %d of %d tasks skipped: %w", summary.Skipped, cfg.Tasks, err)
	}
	if summary.Failed > 0 {
		return report, fmt.Errorf("%d of %d tasks failed, first: %w", summary.Failed, cfg.Tasks, summary.Failures[0])
	}
	return report, nil
}
