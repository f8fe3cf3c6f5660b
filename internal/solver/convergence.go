package solver

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines the stopping tests evaluated after every
// committed iterate.
type ConvergenceConfig struct {
	// TolF is the relative objective change threshold:
	// |F(x_{k+1}) - F(x_k)| <= TolF * max(1, |F(x_k)|)
	TolF float64

	// TolX is the relative iterate change threshold:
	// ||x_{k+1} - x_k|| <= TolX * max(1, ||x_k||)
	TolX float64

	// TolGrad bounds the gradient-mapping norm ||(x_k - x_{k+1}) / t_k||
	TolGrad float64

	// MaxIter stops the run once this many iterations were committed
	MaxIter int
}

// ConvergenceConfigFrom extracts the stopping tests from solver options.
func ConvergenceConfigFrom(opts Options) ConvergenceConfig {
	return ConvergenceConfig{
		TolF:    opts.TolF,
		TolX:    opts.TolX,
		TolGrad: opts.TolGrad,
		MaxIter: opts.MaxIter,
	}
}

// ConvergenceMonitor tracks the best objective of one run and decides when to
// stop. Zero tolerances disable their test.
type ConvergenceMonitor struct {
	config ConvergenceConfig
	best   float64
}

// NewConvergenceMonitor creates a monitor with the given config.
func NewConvergenceMonitor(config ConvergenceConfig) *ConvergenceMonitor {
	return &ConvergenceMonitor{
		config: config,
		best:   math.Inf(1),
	}
}

// Start records the objective at the starting point and reports whether the
// starting point already satisfies the gradient-mapping test.
func (m *ConvergenceMonitor) Start(objective, gradMapNorm float64) bool {
	m.record(objective)
	if m.config.TolGrad > 0 && gradMapNorm <= m.config.TolGrad {
		slog.Info("Starting point is stationary", "grad_map_norm", gradMapNorm, "tol_grad", m.config.TolGrad)
		return true
	}
	return false
}

// Check evaluates the stopping tests in priority order for a committed step.
// It returns StateRunning while none applies.
func (m *ConvergenceMonitor) Check(s stepResult) (State, Reason) {
	m.record(s.objective)

	if m.config.TolF > 0 {
		change := math.Abs(s.objective - s.objPrev)
		if change <= m.config.TolF*math.Max(1, math.Abs(s.objPrev)) {
			slog.Debug("Objective change below tolerance", "iteration", s.iteration, "change", change)
			return StateConverged, ReasonFunctionChange
		}
	}
	if m.config.TolX > 0 {
		if s.stepNorm <= m.config.TolX*math.Max(1, s.prevNorm) {
			slog.Debug("Iterate change below tolerance", "iteration", s.iteration, "step_norm", s.stepNorm)
			return StateConverged, ReasonIterateChange
		}
	}
	if m.config.TolGrad > 0 {
		if g := s.gradMapNorm(); g <= m.config.TolGrad {
			slog.Debug("Gradient mapping below tolerance", "iteration", s.iteration, "grad_map_norm", g)
			return StateConverged, ReasonGradientMapping
		}
	}
	if s.iteration >= m.config.MaxIter {
		return StateMaxIter, ReasonNone
	}
	return StateRunning, ReasonNone
}

func (m *ConvergenceMonitor) record(objective float64) {
	if objective < m.best {
		m.best = objective
	}
}

// Best returns the lowest objective seen so far.
func (m *ConvergenceMonitor) Best() float64 {
	return m.best
}
