// Package solver implements an accelerated proximal-gradient (FISTA) method
// for min_x f(x) + g(x), where f is smooth and g has a computable proximal
// operator.
//
// A solve is strictly sequential: every iteration extrapolates from the last
// two iterates, evaluates the gradient at the extrapolated point, backtracks
// on the step size until the sufficient-decrease test holds and commits the
// result. Budgets (context, wall clock, evaluations, iterations) are checked
// between iterations only.
package solver

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/vec"
)

// Solve minimizes f + g starting at x0. x0 is copied and never modified.
//
// The returned error is non-nil only for invalid input or options, in which
// case no oracle is called. Every failure after that is reported through the
// Result's Status and Err together with the history gathered so far.
func Solve(ctx context.Context, x0 []float64, smooth oracle.Smooth, prox oracle.Proximal, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(x0) == 0 {
		return nil, &ConfigError{Field: "x0", Value: x0, Reason: "must be non-empty"}
	}
	if !vec.AllFinite(x0) {
		return nil, &ConfigError{Field: "x0", Value: x0, Reason: "must be finite"}
	}
	if smooth == nil {
		return nil, &ConfigError{Field: "value_grad", Value: nil, Reason: "oracle is required"}
	}
	if prox == nil {
		return nil, &ConfigError{Field: "prox", Value: nil, Reason: "oracle is required"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r := newRun(len(x0), smooth, prox, opts)
	return r.execute(ctx, vec.Copy(x0)), nil
}

// run owns every piece of state of one solve.
type run struct {
	opts    Options
	adapter *oracle.Adapter
	steps   *stepSizeController
	it      *iterator
	monitor *ConvergenceMonitor

	start   time.Time
	history []IterationRecord
}

func newRun(dim int, smooth oracle.Smooth, prox oracle.Proximal, opts Options) *run {
	adapter := oracle.NewAdapter(dim, smooth, prox)
	steps := newStepSizeController(opts)
	return &run{
		opts:    opts,
		adapter: adapter,
		steps:   steps,
		it:      newIterator(adapter, steps, opts.AdaptiveRestart),
		monitor: NewConvergenceMonitor(ConvergenceConfigFrom(opts)),
	}
}

func (r *run) execute(ctx context.Context, x0 []float64) *Result {
	r.start = time.Now()
	slog.Debug("Starting solve",
		"dim", len(x0),
		"max_iter", r.opts.MaxIter,
		"t0", r.opts.T0,
		"adaptive_restart", r.opts.AdaptiveRestart,
		"nonsmooth_value", r.adapter.HasValuer(),
	)

	if err := r.it.init(x0); err != nil {
		r.it.x = x0
		r.it.objective = math.NaN()
		return r.fail(err)
	}
	gm, err := r.it.stationarity(r.opts.T0)
	if err != nil {
		return r.fail(err)
	}
	r.append(IterationRecord{
		Iteration:   0,
		Objective:   r.it.objective,
		GradMapNorm: gm,
		StepSize:    r.opts.T0,
	})
	if r.monitor.Start(r.it.objective, gm) {
		return r.finish(StatusConverged, ReasonGradientMapping)
	}

	for {
		if status, stop := r.budgetExceeded(ctx); stop {
			return r.finish(status, ReasonNone)
		}

		s, err := r.it.step()
		if err != nil {
			return r.fail(err)
		}
		if !(s.t > 0) {
			// The controller only ever shrinks by a factor in (0, 1) and
			// gives up above the floor, so this cannot happen.
			return r.fail(errors.Wrapf(ErrStepSizeExhausted, "accepted non-positive step %g", s.t))
		}

		rec := IterationRecord{
			Iteration:   s.iteration,
			Objective:   s.objective,
			GradMapNorm: s.gradMapNorm(),
			StepSize:    s.t,
			Backtracks:  s.backtracks,
			Restarted:   s.restarted,
		}
		r.append(rec)
		if r.opts.LogEvery > 0 && s.iteration%r.opts.LogEvery == 0 {
			slog.Debug("Iteration",
				"iteration", s.iteration,
				"objective", s.objective,
				"grad_map_norm", rec.GradMapNorm,
				"step_size", s.t,
				"backtracks", s.backtracks,
			)
		}

		switch state, reason := r.monitor.Check(s); state {
		case StateConverged:
			return r.finish(StatusConverged, reason)
		case StateMaxIter:
			return r.finish(StatusMaxIterations, ReasonNone)
		}
	}
}

// budgetExceeded checks the cooperative stop conditions at the top of an
// iteration.
func (r *run) budgetExceeded(ctx context.Context) (Status, bool) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusTimeLimit, true
		}
		return StatusCancelled, true
	}
	if r.opts.MaxDuration > 0 && time.Since(r.start) >= r.opts.MaxDuration {
		return StatusTimeLimit, true
	}
	if r.opts.MaxFunEvals > 0 && r.adapter.Counts().FunEvals >= r.opts.MaxFunEvals {
		return StatusMaxFunEvals, true
	}
	return "", false
}

func (r *run) append(rec IterationRecord) {
	c := r.adapter.Counts()
	rec.FunEvals = c.FunEvals
	rec.ProxEvals = c.ProxEvals
	rec.Elapsed = time.Since(r.start)
	r.history = append(r.history, rec)
	if r.opts.Recorder != nil {
		r.opts.Recorder(rec)
	}
}

func (r *run) fail(err error) *Result {
	kind := classify(err)
	serr := &SolveError{Kind: kind, Iteration: r.it.k + 1, Err: err}
	if r.it.state == StateInit {
		serr.Iteration = 0
	}
	slog.Warn("Solve failed", "kind", kind.String(), "iteration", serr.Iteration, "error", err)

	res := r.result(statusForKind(kind), ReasonNone)
	res.Err = serr
	return res
}

func (r *run) finish(status Status, reason Reason) *Result {
	res := r.result(status, reason)
	slog.Info("Solve finished",
		"status", string(status),
		"reason", string(reason),
		"iterations", res.Iterations,
		"objective", res.Objective,
		"best_objective", r.monitor.Best(),
		"fun_evals", res.FunEvals,
		"prox_evals", res.ProxEvals,
		"elapsed", res.Elapsed,
	)
	return res
}

func (r *run) result(status Status, reason Reason) *Result {
	r.it.finish(status.State())
	c := r.adapter.Counts()
	return &Result{
		X:          vec.Copy(r.it.x),
		Objective:  r.it.objective,
		State:      r.it.state,
		Status:     status,
		Reason:     reason,
		Iterations: r.it.k,
		FunEvals:   c.FunEvals,
		ProxEvals:  c.ProxEvals,
		History:    append([]IterationRecord(nil), r.history...),
		Elapsed:    time.Since(r.start),
	}
}
