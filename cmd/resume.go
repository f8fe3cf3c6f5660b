package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/store"
)

var resumeProblemPath string

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Continue a saved run from its final iterate",
	Long: `Starts a new solve from the final iterate of a saved run. The new run is
saved under its own ID and records the run it continued.

By default the problem stored with the run is used. --problem substitutes a
problem file, for example with a larger iteration budget; it must have the
same kind and dimension.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeProblemPath, "problem", "", "Problem file to continue with (default: the run's own problem)")
	resumeCmd.Flags().BoolVar(&writeTrace, "trace", false, "Write the per-iteration trace")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runs, err := openStore(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	req, err := resumeRequest(runs, args[0], resumeProblemPath)
	if err != nil {
		return err
	}
	req.Trace = writeTrace

	rec, err := executeRun(ctx, req)
	if rec != nil {
		printRecord(cmd.OutOrStdout(), rec, true)
	}
	return err
}

// resumeRequest prepares a solve that continues runID.
func resumeRequest(runs *store.FSStore, runID, problemPath string) (runRequest, error) {
	prev, err := runs.LoadRun(runID)
	if err != nil {
		return runRequest{}, err
	}

	config := prev.Config
	// The iterate already reflects any warm start.
	config.WarmStart = false
	if problemPath != "" {
		spec, err := problem.Load(problemPath)
		if err != nil {
			return runRequest{}, err
		}
		if err := prev.IsCompatible(spec); err != nil {
			return runRequest{}, fmt.Errorf("cannot resume %s: %w", runID, err)
		}
		config.ProblemPath = problemPath
		config.Problem = *spec
	}

	return runRequest{
		RunID:       uuid.New().String(),
		Config:      config,
		X0:          prev.X,
		ResumedFrom: runID,
		Runs:        runs,
	}, nil
}
