package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/vkprobe/internal/server"
	"github.com/cwbudde/vkprobe/internal/snapshot"
	"github.com/cwbudde/vkprobe/internal/vk"
)

var (
	diffDataDir string
	diffRemote  string
)

var diffCmd = &cobra.Command{
	Use:   "diff [snapshot]",
	Short: "Compare device snapshots",
	Long: `Compare a stored snapshot (by ID or file path) against the current
devices, or against a remote vkprobe server when --remote is given.
Without a snapshot argument, --remote compares the local devices against
the remote ones.

Exits 0 when the snapshots are identical, 1 when they differ and 2 on error.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffDataDir, "data-dir", "./data", "Base directory for snapshot storage")
	diffCmd.Flags().StringVar(&diffRemote, "remote", "", "Compare against this vkprobe server URL")
}

func runDiff(cmd *cobra.Command, args []string) {
	result, err := diffSnapshots(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if result.Identical() {
		fmt.Println("Snapshots are identical.")
		return
	}

	printDiffReport(result)
	os.Exit(1)
}

func diffSnapshots(args []string) (*snapshot.Report, error) {
	if len(args) == 0 && diffRemote == "" {
		return nil, fmt.Errorf("a snapshot argument or --remote is required")
	}

	var reference *snapshot.Snapshot
	var err error
	if len(args) > 0 {
		reference, err = loadSnapshotArg(args[0])
	} else {
		reference, err = snapshot.Capture(vk.SystemDriver())
	}
	if err != nil {
		return nil, err
	}

	var current *snapshot.Snapshot
	if diffRemote != "" {
		current, err = server.FetchSnapshot(context.Background(), diffRemote)
	} else {
		current, err = snapshot.Capture(vk.SystemDriver())
	}
	if err != nil {
		return nil, err
	}

	return snapshot.Diff(reference, current), nil
}

// loadSnapshotArg loads a snapshot from a file path or, when no such file
// exists, from the store by ID.
func loadSnapshotArg(arg string) (*snapshot.Snapshot, error) {
	if _, err := os.Stat(arg); err == nil {
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot file: %w", err)
		}
		defer f.Close()
		return snapshot.Decode(f, snapshot.FormatForPath(arg))
	}

	store, err := snapshot.NewFSStore(diffDataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return store.Load(arg)
}

func printDiffReport(result *snapshot.Report) {
	for _, dev := range result.Removed {
		fmt.Printf("- device %d: %q (%s)\n", dev.Index, dev.Properties.DeviceName, dev.Properties.DeviceType)
	}
	for _, dev := range result.Added {
		fmt.Printf("+ device %d: %q (%s)\n", dev.Index, dev.Properties.DeviceName, dev.Properties.DeviceType)
	}
	for _, change := range result.Changed {
		fmt.Printf("~ device %d: %q\n", change.Index, change.Name)
		for _, field := range change.Fields {
			fmt.Printf("    %s\n", field)
		}
	}
}
