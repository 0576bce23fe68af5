package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/queuebench/internal/bench"
	"github.com/cwbudde/queuebench/internal/device"
	"github.com/cwbudde/queuebench/internal/opt"
)

var (
	tuneFlags      benchFlags
	tuneMaxWorkers int
	tuneMaxQueues  int
	tuneIters      int
	tunePop        int
	tuneSeed       int64
	tuneTop        int
	tuneJSON       bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search worker count and queue split for the best throughput",
	Long: `Runs short benchmarks under a mayfly optimizer, varying the number of
workers and the split between CPU and host queues. Every distinct setting is
measured once.`,
	RunE: runTune,
}

func init() {
	def := bench.DefaultConfig()
	def.Tasks = 20
	def.BufferSize = 100000
	def.ProgressInterval = 0
	tuneFlags.register(tuneCmd.Flags(), def, false)

	tuneCmd.Flags().IntVar(&tuneMaxWorkers, "max-threads", 16, "Upper bound for worker goroutines")
	tuneCmd.Flags().IntVar(&tuneMaxQueues, "max-queues", 4, "Upper bound for CPU and for host queues")
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 10, "Optimizer iterations")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 20, "Optimizer population size")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 42, "Random seed")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 5, "Number of trials to print")
	tuneCmd.Flags().BoolVar(&tuneJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	base, err := tuneFlags.config()
	if err != nil {
		return err
	}

	platform, err := device.NewPlatform(base.Platform)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	tc := opt.TuneConfig{Base: base, MaxWorkers: tuneMaxWorkers, MaxQueues: tuneMaxQueues}
	optimizer := opt.NewMayfly(tuneIters, tunePop, tuneSeed)
	result, err := opt.Tune(ctx, tc, optimizer, harnessEvaluator(platform), logger)
	if err != nil {
		return err
	}
	return writeTuneResult(cmd.OutOrStdout(), result, tuneTop, tuneJSON)
}

// harnessEvaluator measures a setting with a full harness run on platform.
func harnessEvaluator(platform device.Platform) opt.Evaluator {
	return func(ctx context.Context, cfg bench.Config) (float64, error) {
		h, err := bench.NewHarness(cfg, platform, logger)
		if err != nil {
			return 0, err
		}
		report, err := h.Run(ctx)
		if err != nil {
			return 0, err
		}
		return report.TasksPerSecond, nil
	}
}

func writeTuneResult(w io.Writer, r *opt.TuneResult, top int, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "Best: --threads %d --cpu %d --host %d (%.2f tasks/s, %d settings measured)\n\n",
		r.Best.Workers, r.Best.CPUQueues, r.Best.HostQueues, r.Rate, len(r.Trials))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "THREADS\tCPU\tHOST\tTASKS/S\tERROR")
	for i, t := range r.Trials {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f\t%s\n", t.Setting.Workers, t.Setting.CPUQueues, t.Setting.HostQueues, t.TasksPerSecond, t.Err)
	}
	return tw.Flush()
}
