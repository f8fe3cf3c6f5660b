package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	dataDir  string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "proxgrad",
	Short: "Accelerated proximal-gradient solver",
	Long: `proxgrad minimizes f(x) + g(x) with FISTA, where f is smooth and g has a
proximal operator. Problems are read from YAML files; runs are persisted so
they can be listed, inspected and resumed, and a server mode exposes the
solver over HTTP with live progress streams.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so stdout carries results.
		opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "Base directory for run storage")
}
