package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/queuebench/internal/bench"
	"github.com/cwbudde/queuebench/internal/device"
)

var (
	runFlags   benchFlags
	jsonReport bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the queue pool benchmark",
	Long: `Opens the requested device queues, dispatches --tasks kernel invocations
onto --threads workers and reports throughput once every task finished.`,
	RunE: runBenchmark,
}

func init() {
	runFlags.register(runCmd.Flags(), bench.DefaultConfig(), true)
	runCmd.Flags().BoolVar(&jsonReport, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(runCmd)
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := runFlags.config()
	if err != nil {
		return err
	}

	platform, err := device.NewPlatform(cfg.Platform)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}

	harness, err := bench.NewHarness(cfg, platform, logger)
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	harness.OnProgress = func(p bench.Progress) {
		fmt.Fprintf(stderr, "Processed %d / %d calculations...\n", p.Completed, p.Total)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	slog.Info("Starting benchmark", "platform", platform.Name(), "kernel", cfg.Kernel,
		"threads", cfg.Workers, "tasks", cfg.Tasks)

	report, runErr := harness.Run(ctx)
	if report != nil {
		if err := writeReport(cmd.OutOrStdout(), report, jsonReport); err != nil {
			return err
		}
	}
	return runErr
}

func writeReport(w io.Writer, r *bench.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "Run %s: %d tasks on %d threads (%s, %s)\n",
		r.RunID, r.Config.Tasks, r.Config.Workers, r.Platform, r.Kernel)
	fmt.Fprintf(w, "Completed: %d  Failed: %d  Skipped: %d  Counter: %d\n",
		r.Summary.Completed, r.Summary.Failed, r.Summary.Skipped, r.Counter)
	fmt.Fprintf(w, "Elapsed: %s  Throughput: %.2f tasks/s\n\n", r.Elapsed, r.TasksPerSecond)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tCLASS\tDEVICE\tACQUIRES")
	for _, q := range r.Queues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", q.ID, q.Class, q.Device, q.Acquires)
	}
	return tw.Flush()
}
