package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/proxgrad/internal/opt"
	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/solver"
	"github.com/cwbudde/proxgrad/internal/store"
)

// progressInterval throttles SSE progress events.
var progressInterval = 500 * time.Millisecond

// Warm-start search budget for jobs that ask for one.
const (
	warmStartIters = 50
	warmStartPop   = opt.MinPopulation
)

// runJob executes a solve job in the background. When runs is not nil the
// final record is saved under the job ID; when traceDir is not empty every
// iteration is also appended to the run's trace file.
func runJob(ctx context.Context, jm *JobManager, runs store.Store, traceDir string, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	defer jm.UpdateJob(jobID, func(j *Job) { j.cancel() })
	// Runs after the final event went out; subscribers drain what is buffered.
	defer jm.broadcaster.CleanupJob(jobID)

	if err := jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem.Name, "kind", job.Config.Problem.Kind)

	spec := job.Config.Problem
	p, err := spec.Build()
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	x0 := p.X0
	if job.Config.WarmStart {
		if !spec.HasBox() {
			err := fmt.Errorf("warm start needs lower and upper bounds")
			markJobFailed(jm, jobID, err)
			return err
		}
		searcher := opt.NewMayfly(warmStartIters, warmStartPop, job.Config.Seed)
		x0, err = opt.WarmStart(ctx, searcher, p.Objective, p.X0, p.Lower, p.Upper)
		if err != nil {
			if ctx.Err() != nil {
				markJobCancelled(jm, jobID)
				return ctx.Err()
			}
			markJobFailed(jm, jobID, err)
			return err
		}
	}

	var (
		tw         *store.TraceWriter
		closeTrace func() error
	)
	opts := p.Options
	record := func(rec solver.IterationRecord) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.history = append(j.history, rec)
			j.Iterations = rec.Iteration
			j.Objective = rec.Objective
			j.GradMapNorm = rec.GradMapNorm
			j.StepSize = rec.StepSize
			j.FunEvals = rec.FunEvals
			if rec.Restarted {
				j.Restarts++
			}
			if rec.Iteration == 0 {
				j.InitialObjective = rec.Objective
			}
		})
	}
	opts.Recorder = record
	if traceDir != "" {
		if tw, err = store.NewTraceWriter(traceDir, jobID, false); err != nil {
			markJobFailed(jm, jobID, err)
			return err
		}
		var writeTrace func(solver.IterationRecord)
		writeTrace, closeTrace = tw.Recorder()
		opts.Recorder = func(rec solver.IterationRecord) {
			record(rec)
			writeTrace(rec)
		}
	}

	progressDone := make(chan struct{})
	monitorExited := make(chan struct{})
	go func() {
		defer close(monitorExited)
		monitorProgress(ctx, jm, jobID, progressDone, tw)
	}()

	res, err := solver.Solve(ctx, x0, p.Smooth, p.Prox, opts)
	close(progressDone)
	<-monitorExited
	if closeTrace != nil {
		if cerr := closeTrace(); cerr != nil {
			slog.Warn("Failed to write trace", "job_id", jobID, "error", cerr)
		} else {
			slog.Debug("Trace written", "job_id", jobID, "records", tw.Count(), "path", tw.Path())
		}
	}
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	state := StateCompleted
	switch {
	case res.Status == solver.StatusCancelled:
		state = StateCancelled
	case res.Status.Failed():
		state = StateFailed
	}

	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Status = res.Status
		j.Reason = res.Reason
		j.Iterations = res.Iterations
		j.FunEvals = res.FunEvals
		j.X = append([]float64(nil), res.X...)
		if !math.IsNaN(res.Objective) {
			j.Objective = res.Objective
		}
		if res.Err != nil {
			j.Error = res.Err.Error()
		}
		j.EndTime = &endTime
	})

	if runs != nil && len(res.History) > 0 {
		rec := store.NewRunRecord(jobID, res, job.Config)
		if err := runs.SaveRun(jobID, rec); err != nil {
			slog.Error("Failed to save run", "job_id", jobID, "error", err)
		}
	} else if traceDir != "" {
		// Nothing to resume from; drop the orphaned trace.
		if err := store.DeleteTrace(traceDir, jobID); err != nil {
			slog.Warn("Failed to remove trace", "job_id", jobID, "error", err)
		}
	}

	slog.Info("Job finished",
		"job_id", jobID,
		"state", state,
		"status", res.Status,
		"iterations", res.Iterations,
		"objective", res.Objective,
		"elapsed", res.Elapsed,
	)

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(eventFor(final))

	if res.Err != nil {
		return res.Err
	}
	return nil
}

// monitorProgress periodically broadcasts progress events while a job runs
// and flushes its trace, if any, so readers see recent records.
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}, tw *store.TraceWriter) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}
			jm.broadcaster.Broadcast(eventFor(job))
			if tw != nil {
				if err := tw.Flush(); err != nil {
					slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
				}
			}
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	var verr *store.ValidationError
	if errors.Is(err, problem.ErrInvalid) || errors.As(err, &verr) {
		slog.Warn("Job rejected", "job_id", jobID, "error", err)
	} else {
		slog.Error("Job failed", "job_id", jobID, "error", err)
	}
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFor(job))
	}
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Status = solver.StatusCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(eventFor(job))
	}
}
