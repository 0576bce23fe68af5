package main

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/cwbudde/queuebench/internal/bench"
)

// benchFlags holds the harness options shared by run and tune.
type benchFlags struct {
	threads        int
	host           int
	cpu            int
	gpu            int
	tasks          int
	bufferSize     int
	iterations     int
	kernel         string
	platform       string
	disfavor       []string
	onError        string
	acquireTimeout time.Duration
	progress       time.Duration
}

// register binds the flags to fs. With withPool false, the worker and queue
// split flags are left out; tune searches those itself.
func (f *benchFlags) register(fs *pflag.FlagSet, def bench.Config, withPool bool) {
	if withPool {
		fs.IntVarP(&f.threads, "threads", "t", def.Workers, "Worker goroutines")
		fs.IntVar(&f.host, "host", def.Queues.Host, "Host fallback queues")
		fs.IntVarP(&f.cpu, "cpu", "c", def.Queues.CPU, "CPU queues")
	}
	fs.IntVarP(&f.gpu, "gpu", "g", def.Queues.Accelerator, "Accelerator queues, chosen by device ranking")
	fs.IntVarP(&f.tasks, "tasks", "n", def.Tasks, "Number of tasks")
	fs.IntVar(&f.bufferSize, "buffer-size", def.BufferSize, "Work buffer elements per task")
	fs.IntVar(&f.iterations, "iterations", def.Iterations, "Affine kernel iterations")
	fs.StringVar(&f.kernel, "kernel", def.Kernel, "Kernel: affine, identity")
	fs.StringVar(&f.platform, "platform", def.Platform, "Device platform: native, opencl")
	fs.StringSliceVar(&f.disfavor, "disfavor", def.DisfavoredVendors, "Vendor substrings never used for accelerator queues")
	fs.StringVar(&f.onError, "on-error", string(def.FailurePolicy), "Task failure policy: continue, abort")
	fs.DurationVar(&f.acquireTimeout, "acquire-timeout", def.AcquireTimeout, "Bound on waiting for an idle queue (0 waits forever)")
	fs.DurationVar(&f.progress, "progress", def.ProgressInterval, "Progress report interval (0 disables)")

	if !withPool {
		f.threads, f.host, f.cpu = def.Workers, def.Queues.Host, def.Queues.CPU
	}
}

// config builds and validates a bench.Config from the parsed flags.
func (f *benchFlags) config() (bench.Config, error) {
	policy, err := bench.ParseFailurePolicy(f.onError)
	if err != nil {
		return bench.Config{}, err
	}

	cfg := bench.DefaultConfig()
	cfg.Workers = f.threads
	cfg.Queues.Accelerator = f.gpu
	cfg.Queues.CPU = f.cpu
	cfg.Queues.Host = f.host
	cfg.Tasks = f.tasks
	cfg.BufferSize = f.bufferSize
	cfg.Iterations = f.iterations
	cfg.Kernel = f.kernel
	cfg.Platform = f.platform
	cfg.DisfavoredVendors = append([]string(nil), f.disfavor...)
	cfg.FailurePolicy = policy
	cfg.AcquireTimeout = f.acquireTimeout
	cfg.ProgressInterval = f.progress

	if err := cfg.Validate(); err != nil {
		return bench.Config{}, err
	}
	return cfg, nil
}
