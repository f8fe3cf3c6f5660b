package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/proxgrad/internal/opt"
	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/solver"
	"github.com/cwbudde/proxgrad/internal/store"
)

var (
	problemPath string
	saveRun     bool
	writeTrace  bool
	warmStart   bool
	warmIters   int
	warmPop     int
	seed        int64
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a problem file",
	Long: `Loads a problem from a YAML file and minimizes it. With --save the result
is stored under --data-dir and can be resumed later; --trace additionally keeps
every iteration record. Interrupting the solve stops it after the current
iteration and still saves what was reached.`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&problemPath, "problem", "", "Problem file (YAML, required)")
	solveCmd.Flags().BoolVar(&saveRun, "save", true, "Persist the run under --data-dir")
	solveCmd.Flags().BoolVar(&writeTrace, "trace", false, "Write the per-iteration trace (requires --save)")
	solveCmd.Flags().BoolVar(&warmStart, "warm-start", false, "Seed x0 with a mayfly search over the problem's box")
	solveCmd.Flags().IntVar(&warmIters, "warm-iters", 50, "Warm-start iterations")
	solveCmd.Flags().IntVar(&warmPop, "warm-pop", opt.MinPopulation, "Warm-start population size")
	solveCmd.Flags().Int64Var(&seed, "seed", 42, "Warm-start random seed")

	solveCmd.MarkFlagRequired("problem")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	spec, err := problem.Load(problemPath)
	if err != nil {
		return err
	}

	runs, err := openStore(saveRun)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rec, err := executeRun(ctx, runRequest{
		RunID:  uuid.New().String(),
		Config: store.RunConfig{ProblemPath: problemPath, Problem: *spec, WarmStart: warmStart, Seed: seed},
		Runs:   runs,
		Trace:  writeTrace,
	})
	if rec != nil {
		printRecord(cmd.OutOrStdout(), rec, runs != nil)
	}
	return err
}

func openStore(enabled bool) (*store.FSStore, error) {
	if !enabled {
		return nil, nil
	}
	runs, err := store.NewFSStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return runs, nil
}

// runRequest describes one solve started from the CLI.
type runRequest struct {
	RunID  string
	Config store.RunConfig

	// X0 overrides the problem's starting point.
	X0          []float64
	ResumedFrom string

	Runs  *store.FSStore
	Trace bool
}

// executeRun builds the problem, optionally warm-starts it, solves it and
// saves the record. A run that failed inside the solver still returns its
// record together with the failure.
func executeRun(ctx context.Context, req runRequest) (*store.RunRecord, error) {
	p, err := req.Config.Problem.Build()
	if err != nil {
		return nil, err
	}

	x0 := p.X0
	if req.X0 != nil {
		if len(req.X0) != len(p.X0) {
			return nil, fmt.Errorf("starting point has %d entries, problem has %d", len(req.X0), len(p.X0))
		}
		x0 = req.X0
	}

	if req.Config.WarmStart {
		if !req.Config.Problem.HasBox() {
			return nil, fmt.Errorf("warm start needs lower and upper bounds in the problem file")
		}
		searcher := opt.NewMayfly(warmIters, warmPop, req.Config.Seed)
		if x0, err = opt.WarmStart(ctx, searcher, p.Objective, x0, p.Lower, p.Upper); err != nil {
			return nil, fmt.Errorf("warm start failed: %w", err)
		}
	}

	opts := p.Options
	var (
		tw         *store.TraceWriter
		closeTrace func() error
	)
	if req.Runs != nil && req.Trace {
		if tw, err = store.NewTraceWriter(req.Runs.BaseDir(), req.RunID, false); err != nil {
			return nil, err
		}
		opts.Recorder, closeTrace = tw.Recorder()
	}

	slog.Info("Starting solve",
		"run_id", req.RunID,
		"problem", req.Config.Problem.Name,
		"kind", req.Config.Problem.Kind,
		"dim", len(x0),
		"resumed_from", req.ResumedFrom,
	)

	res, err := solver.Solve(ctx, x0, p.Smooth, p.Prox, opts)
	if closeTrace != nil {
		if cerr := closeTrace(); cerr != nil {
			slog.Warn("Failed to write trace", "run_id", req.RunID, "error", cerr)
		} else {
			slog.Debug("Trace written", "run_id", req.RunID, "records", tw.Count(), "path", tw.Path())
		}
	}
	if err != nil {
		return nil, err
	}

	rec := store.NewRunRecord(req.RunID, res, req.Config)
	rec.ResumedFrom = req.ResumedFrom

	// Init failures leave no finite objective to store.
	if req.Runs != nil && !math.IsNaN(res.Objective) {
		if err := req.Runs.SaveRun(req.RunID, rec); err != nil {
			return rec, fmt.Errorf("failed to save run: %w", err)
		}
		slog.Info("Run saved", "run_id", req.RunID, "dir", req.Runs.BaseDir())
	} else if tw != nil {
		if err := store.DeleteTrace(req.Runs.BaseDir(), req.RunID); err != nil {
			slog.Warn("Failed to remove trace", "run_id", req.RunID, "error", err)
		}
	}

	if res.Err != nil {
		return rec, res.Err
	}
	return rec, nil
}

func printRecord(w io.Writer, rec *store.RunRecord, saved bool) {
	fmt.Fprintf(w, "Status:     %s", rec.Status)
	if rec.Reason != "" {
		fmt.Fprintf(w, " (%s)", rec.Reason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Objective:  %.10g -> %.10g\n", rec.InitialObjective, rec.Objective)
	fmt.Fprintf(w, "Iterations: %d (%d function, %d prox evaluations)\n", rec.Iterations, rec.FunEvals, rec.ProxEvals)
	fmt.Fprintf(w, "Elapsed:    %s\n", rec.Elapsed)
	fmt.Fprintf(w, "x:          %s\n", formatVector(rec.X, 10))
	if rec.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", rec.Error)
	}
	if saved && !math.IsNaN(rec.Objective) {
		fmt.Fprintf(w, "Run ID:     %s\n", rec.RunID)
	}
}

// formatVector prints at most limit entries.
func formatVector(x []float64, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, v := range x {
		if i == limit {
			parts = append(parts, fmt.Sprintf("... (%d more)", len(x)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%.6g", v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}
