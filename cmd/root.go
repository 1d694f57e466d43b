package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/vkprobe/internal/report"
	"github.com/cwbudde/vkprobe/internal/vk"
)

var (
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vkprobe",
	Short: "Inspect the physical devices exposed by the Vulkan driver",
	Long: `vkprobe enumerates every physical device the Vulkan driver exposes and
prints an identity, memory and queue family report. Subcommands capture
device snapshots, compare them and serve the probe over HTTP.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logger. Logs go to stderr; stdout carries the report.
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if code := report.Run(vk.SystemDriver(), os.Stdout, os.Stderr); code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
