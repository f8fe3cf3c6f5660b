package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/proxgrad/internal/server"
)

var (
	serveAddr     string
	serveNoStore  bool
	shutdownGrace time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job server",
	Long: `Serves the job API on --addr. Finished jobs are saved as runs under
--data-dir unless --no-store is given. SIGINT or SIGTERM cancels running jobs
and shuts the server down.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&serveNoStore, "no-store", false, "Keep finished jobs in memory only")
	serveCmd.Flags().DurationVar(&shutdownGrace, "shutdown-timeout", 10*time.Second, "Grace period for open connections on shutdown")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	runs, err := openStore(!serveNoStore)
	if err != nil {
		return err
	}
	srv := server.NewServer(serveAddr, runs)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		slog.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(ctx)
}
