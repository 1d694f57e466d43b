package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/vkprobe/internal/snapshot"
	"github.com/cwbudde/vkprobe/internal/vk"
)

var (
	snapshotDataDir string
	snapshotOut     string
	snapshotFormat  string
	keepLast        int
	olderThanDays   int
	forceClean      bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage device snapshots",
	Long: `Manage device snapshots including capturing, listing and cleaning.
A snapshot records every visible device for later comparison.`,
}

var saveSnapshotCmd = &cobra.Command{
	Use:   "save",
	Short: "Capture a snapshot of the visible devices",
	Long: `Queries every physical device and stores the result in the snapshot
store, or writes it to a file when --out is given.`,
	RunE: runSaveSnapshot,
}

var listSnapshotsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored snapshots",
	RunE:  runListSnapshots,
}

var cleanSnapshotsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old snapshots",
	Long: `Delete old snapshots based on retention policy.
You can keep only the most recent N snapshots, or delete snapshots older than a certain age.`,
	RunE: runCleanSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.AddCommand(saveSnapshotCmd)
	snapshotCmd.AddCommand(listSnapshotsCmd)
	snapshotCmd.AddCommand(cleanSnapshotsCmd)

	snapshotCmd.PersistentFlags().StringVar(&snapshotDataDir, "data-dir", "./data", "Base directory for snapshot storage")

	saveSnapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "Write the snapshot to this file instead of the store")
	saveSnapshotCmd.Flags().StringVar(&snapshotFormat, "format", "", "Format for --out: json or yaml (default: inferred from the file extension)")

	cleanSnapshotsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recent snapshots (0 = keep all)")
	cleanSnapshotsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete snapshots older than N days (0 = no age limit)")
	cleanSnapshotsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runSaveSnapshot(cmd *cobra.Command, args []string) error {
	snap, err := snapshot.Capture(vk.SystemDriver())
	if err != nil {
		return fmt.Errorf("failed to capture snapshot: %w", err)
	}
	snap.ToolVersion = version

	if snapshotOut != "" {
		format := snapshot.Format(snapshotFormat)
		if format == "" {
			format = snapshot.FormatForPath(snapshotOut)
		}

		f, err := os.Create(snapshotOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := snapshot.Encode(f, snap, format); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}

		fmt.Printf("Wrote snapshot to %s (%d devices)\n", snapshotOut, len(snap.Devices))
		return nil
	}

	store, err := snapshot.NewFSStore(snapshotDataDir)
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}

	if err := store.Save(snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	fmt.Printf("Saved snapshot %s (%d devices)\n", snap.ID, len(snap.Devices))
	return nil
}

func runListSnapshots(cmd *cobra.Command, args []string) error {
	store, err := snapshot.NewFSStore(snapshotDataDir)
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}

	infos, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No snapshots found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCAPTURED\tDEVICES\tSIZE\tNAMES")
	fmt.Fprintln(w, "--\t--------\t-------\t----\t-----")

	for _, info := range infos {
		size, err := getDirSize(filepath.Join(snapshotDataDir, "snapshots", info.ID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		displayID := info.ID
		if len(displayID) > 12 {
			displayID = displayID[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			displayID,
			info.CapturedAt.Format("2006-01-02 15:04:05"),
			info.DeviceCount,
			sizeStr,
			strings.Join(info.DeviceNames, ", "),
		)
	}

	w.Flush()
	fmt.Printf("\nTotal snapshots: %d\n", len(infos))

	return nil
}

func runCleanSnapshots(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	store, err := snapshot.NewFSStore(snapshotDataDir)
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}

	infos, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No snapshots found.")
		return nil
	}

	toDelete := selectSnapshotsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No snapshots match the cleanup criteria.")
		return nil
	}

	fmt.Printf("The following %d snapshot(s) will be deleted:\n\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  %s  %s  %d device(s)\n",
			info.ID,
			info.CapturedAt.Format("2006-01-02 15:04:05"),
			info.DeviceCount,
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := store.Delete(info.ID); err != nil {
			slog.Error("Failed to delete snapshot", "id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted snapshot", "id", info.ID)
		deleted++
	}

	fmt.Printf("\nDeleted %d snapshot(s), %d failed.\n", deleted, failed)
	return nil
}

// selectSnapshotsForDeletion applies the retention flags to the listing and
// returns the snapshots to delete. Age and count criteria both apply; a
// snapshot is listed at most once.
func selectSnapshotsForDeletion(infos []snapshot.Info, keepLast, olderThanDays int) []snapshot.Info {
	var toDelete []snapshot.Info

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.CapturedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]snapshot.Info, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !containsSnapshot(toDelete, info.ID) {
				toDelete = append(toDelete, info)
			}
		}
	}

	return toDelete
}

func containsSnapshot(infos []snapshot.Info, id string) bool {
	for _, info := range infos {
		if info.ID == id {
			return true
		}
	}
	return false
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
