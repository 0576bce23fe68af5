package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/cwbudde/queuebench/internal/bench"
)

// infeasibleCost is returned for settings that cannot run. mayfly does not
// cope with infinities, so a large finite value is used.
const infeasibleCost = 1e12

// ErrNoFeasibleSetting is returned when every evaluated setting failed.
var ErrNoFeasibleSetting = errors.New("no setting could be benchmarked")

// Setting is one point of the tuning space.
type Setting struct {
	Workers    int `json:"workers"`
	CPUQueues  int `json:"cpuQueues"`
	HostQueues int `json:"hostQueues"`
}

// Trial is the measured throughput of one setting.
type Trial struct {
	Setting        Setting `json:"setting"`
	TasksPerSecond float64 `json:"tasksPerSecond"`
	Err            string  `json:"error,omitempty"`
}

// TuneConfig bounds the search. Base supplies every other harness option.
type TuneConfig struct {
	Base       bench.Config
	MaxWorkers int
	MaxQueues  int
}

// TuneResult holds the best setting and every distinct trial, best first.
type TuneResult struct {
	Best   Setting `json:"best"`
	Rate   float64 `json:"tasksPerSecond"`
	Trials []Trial `json:"trials"`
}

// Evaluator benchmarks cfg and returns its throughput in tasks per second.
type Evaluator func(ctx context.Context, cfg bench.Config) (float64, error)

// Tune searches worker count and CPU/host queue split for the highest
// throughput. The optimizer works on [0,1]^3; each coordinate is mapped onto
// an integer range and every distinct setting is benchmarked once.
func Tune(ctx context.Context, tc TuneConfig, optimizer Optimizer, eval Evaluator, logger *slog.Logger) (*TuneResult, error) {
	if tc.MaxWorkers < 1 || tc.MaxQueues < 1 {
		return nil, fmt.Errorf("%w: max workers and max queues must be >= 1", bench.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	trials := make(map[Setting]Trial)
	objective := func(x []float64) float64 {
		s := tc.decode(x)
		if t, ok := trials[s]; ok {
			return cost(t)
		}
		if ctx.Err() != nil {
			return infeasibleCost
		}

		cfg := tc.Base
		cfg.Workers = s.Workers
		cfg.Queues.CPU = s.CPUQueues
		cfg.Queues.Host = s.HostQueues

		t := Trial{Setting: s}
		if cfg.Queues.Accelerator+cfg.Queues.CPU+cfg.Queues.Host == 0 {
			t.Err = "no queues requested"
		} else if rate, err := eval(ctx, cfg); err != nil {
			t.Err = err.Error()
		} else {
			t.TasksPerSecond = rate
		}
		trials[s] = t

		logger.Debug("Tuning trial", "workers", s.Workers, "cpu", s.CPUQueues, "host", s.HostQueues,
			"tasks_per_second", t.TasksPerSecond, "error", t.Err)
		return cost(t)
	}

	lower := []float64{0, 0, 0}
	upper := []float64{1, 1, 1}
	optimizer.Run(objective, lower, upper, 3)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &TuneResult{Trials: make([]Trial, 0, len(trials))}
	for _, t := range trials {
		result.Trials = append(result.Trials, t)
	}
	sort.Slice(result.Trials, func(i, j int) bool {
		return cost(result.Trials[i]) < cost(result.Trials[j])
	})

	if len(result.Trials) == 0 || result.Trials[0].Err != "" {
		return result, ErrNoFeasibleSetting
	}
	result.Best = result.Trials[0].Setting
	result.Rate = result.Trials[0].TasksPerSecond
	return result, nil
}

func cost(t Trial) float64 {
	if t.Err != "" {
		return infeasibleCost
	}
	return -t.TasksPerSecond
}

func (tc TuneConfig) decode(x []float64) Setting {
	return Setting{
		Workers:    1 + scale(x[0], tc.MaxWorkers-1),
		CPUQueues:  scale(x[1], tc.MaxQueues),
		HostQueues: scale(x[2], tc.MaxQueues),
	}
}

// scale maps v in [0,1] onto 0..n, clamping out-of-range input.
func scale(v float64, n int) int {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return int(math.Round(v * float64(n)))
}
