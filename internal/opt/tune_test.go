package opt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cwbudde/queuebench/internal/bench"
	"github.com/cwbudde/queuebench/internal/device"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gridOptimizer evaluates a fixed grid; it keeps the search deterministic.
type gridOptimizer struct{ steps int }

func (g gridOptimizer) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	best, bestCost := []float64(nil), 0.0
	var walk func(prefix []float64)
	walk = func(prefix []float64) {
		if len(prefix) == dim {
			c := eval(prefix)
			if best == nil || c < bestCost {
				best, bestCost = append([]float64(nil), prefix...), c
			}
			return
		}
		for i := 0; i <= g.steps; i++ {
			walk(append(prefix, float64(i)/float64(g.steps)))
		}
	}
	walk(nil)
	return best, bestCost
}

func baseConfig() bench.Config {
	cfg := bench.DefaultConfig()
	cfg.Queues = device.Counts{}
	return cfg
}

func TestTuneFindsPeak(t *testing.T) {
	calls := 0
	eval := func(_ context.Context, cfg bench.Config) (float64, error) {
		calls++
		// Peak at 4 workers, 2 CPU queues, 0 host queues.
		rate := 100.0
		rate -= float64((cfg.Workers - 4) * (cfg.Workers - 4))
		rate -= float64((cfg.Queues.CPU - 2) * (cfg.Queues.CPU - 2))
		rate -= float64(cfg.Queues.Host * 3)
		return rate, nil
	}

	tc := TuneConfig{Base: baseConfig(), MaxWorkers: 8, MaxQueues: 4}
	result, err := Tune(context.Background(), tc, gridOptimizer{steps: 8}, eval, quietLogger())
	if err != nil {
		t.Fatalf("Tune failed: %v", err)
	}

	want := Setting{Workers: 4, CPUQueues: 2, HostQueues: 0}
	if result.Best != want {
		t.Errorf("Best = %+v, want %+v", result.Best, want)
	}
	if result.Rate != 100 {
		t.Errorf("Rate = %f, want 100", result.Rate)
	}
	measured := 0
	for _, tr := range result.Trials {
		if tr.Err == "" {
			measured++
		}
	}
	if calls != measured {
		t.Errorf("evaluated %d times for %d distinct settings", calls, measured)
	}
}

func TestTuneSkipsEmptyQueueSettings(t *testing.T) {
	eval := func(_ context.Context, cfg bench.Config) (float64, error) {
		if cfg.Queues.CPU+cfg.Queues.Host == 0 {
			t.Fatal("evaluated a setting without queues")
		}
		return 1, nil
	}
	tc := TuneConfig{Base: baseConfig(), MaxWorkers: 2, MaxQueues: 1}
	if _, err := Tune(context.Background(), tc, gridOptimizer{steps: 1}, eval, quietLogger()); err != nil {
		t.Fatal(err)
	}
}

func TestTuneAllFailing(t *testing.T) {
	eval := func(context.Context, bench.Config) (float64, error) {
		return 0, errors.New("device lost")
	}
	tc := TuneConfig{Base: baseConfig(), MaxWorkers: 2, MaxQueues: 1}
	_, err := Tune(context.Background(), tc, gridOptimizer{steps: 1}, eval, quietLogger())
	if !errors.Is(err, ErrNoFeasibleSetting) {
		t.Errorf("expected ErrNoFeasibleSetting, got %v", err)
	}
}

func TestTuneRejectsBadBounds(t *testing.T) {
	_, err := Tune(context.Background(), TuneConfig{Base: baseConfig()}, gridOptimizer{steps: 1}, nil, quietLogger())
	if !errors.Is(err, bench.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestTuneWithMayfly(t *testing.T) {
	eval := func(_ context.Context, cfg bench.Config) (float64, error) {
		return float64(cfg.Workers + cfg.Queues.CPU), nil
	}
	tc := TuneConfig{Base: baseConfig(), MaxWorkers: 4, MaxQueues: 2}
	result, err := Tune(context.Background(), tc, NewMayfly(10, 20, 7), eval, quietLogger())
	if err != nil {
		t.Fatalf("Tune failed: %v", err)
	}
	if result.Best.Workers < 1 || result.Best.Workers > 4 {
		t.Errorf("workers out of range: %d", result.Best.Workers)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		v    float64
		n    int
		want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{0.5, 4, 2},
		{-1, 4, 0},
		{2, 4, 4},
	}
	for _, tt := range tests {
		if got := scale(tt.v, tt.n); got != tt.want {
			t.Errorf("scale(%f, %d) = %d, want %d", tt.v, tt.n, got, tt.want)
		}
	}
}
