package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/queuebench/internal/device"
)

var (
	devicesPlatform string
	devicesDisfavor []string
	devicesJSON     bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute devices and their ranking scores",
	Long: `Enumerates the devices of a platform and shows the score the accelerator
ranker assigns to each. Devices with score -1 are never used for accelerator queues.`,
	RunE: listDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesPlatform, "platform", device.PlatformNative, "Device platform: native, opencl")
	devicesCmd.Flags().StringSliceVar(&devicesDisfavor, "disfavor", device.DefaultDisfavoredVendors, "Vendor substrings to reject")
	devicesCmd.Flags().BoolVar(&devicesJSON, "json", false, "Print devices as JSON")
	rootCmd.AddCommand(devicesCmd)
}

func listDevices(cmd *cobra.Command, args []string) error {
	platform, err := device.NewPlatform(devicesPlatform)
	if err != nil {
		return fmt.Errorf("failed to create platform: %w", err)
	}

	descs, err := platform.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	ranked := device.Rank(descs, device.NewAcceleratorRanker(devicesDisfavor...))
	return writeDevices(cmd.OutOrStdout(), ranked, devicesJSON)
}

func writeDevices(w io.Writer, ranked []device.Ranked, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	if len(ranked) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tNAME\tVENDOR\tCLASS\tUNITS\tSCORE")
	for _, r := range ranked {
		d := r.Device
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", d.Platform, d.Name, d.Vendor, d.Class, d.MaxComputeUnits, r.Score)
	}
	return tw.Flush()
}
