// Package solver is the public entry point of proxgrad: an accelerated
// proximal-gradient (FISTA) method with backtracking for composite problems
//
//	min_x f(x) + g(x)
//
// where f is smooth with a gradient oracle and g is handled through its
// proximal operator.
//
// Example:
//
//	f := solver.ValueGradFunc(func(x []float64) (float64, []float64, error) {
//	    return 0.5 * (x[0]*x[0] + x[1]*x[1]), []float64{x[0], x[1]}, nil
//	})
//	res, err := solver.Solve(ctx, []float64{3, 4}, f, solver.Identity, solver.DefaultOptions())
package solver

import (
	"context"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/solver"
)

// Oracles

// Smooth evaluates f and its gradient.
type Smooth = oracle.Smooth

// Proximal evaluates prox_{t g}.
type Proximal = oracle.Proximal

// Valuer is implemented by regularizers that can report g(x).
type Valuer = oracle.Valuer

// ValueGradFunc adapts a plain function to Smooth.
type ValueGradFunc = oracle.ValueGradFunc

// ProxFunc adapts a plain function to Proximal.
type ProxFunc = oracle.ProxFunc

// ValueFunc evaluates g(x).
type ValueFunc = oracle.ValueFunc

// Regularizer bundles a proximal operator with an optional value function.
type Regularizer = oracle.Regularizer

// OracleError wraps a failure raised by a caller-supplied oracle.
type OracleError = oracle.Error

// Identity is the proximal operator of g = 0.
var Identity = oracle.Identity

// Configuration

// Options configures a solve.
type Options = solver.Options

// ConfigError reports invalid options or input.
type ConfigError = solver.ConfigError

// DefaultOptions returns the default solver options.
func DefaultOptions() Options {
	return solver.DefaultOptions()
}

// DecodeOptions builds Options from a flat key/value mapping such as a
// decoded YAML or JSON object.
func DecodeOptions(raw map[string]interface{}) (Options, error) {
	return solver.DecodeOptions(raw)
}

// Results

// Result is the terminal outcome of Solve.
type Result = solver.Result

// IterationRecord is one entry of Result.History.
type IterationRecord = solver.IterationRecord

// Status is the terminal outcome of a solve.
type Status = solver.Status

// Reason names the stopping criterion of a converged run.
type Reason = solver.Reason

// State is the lifecycle position of a solve.
type State = solver.State

// ErrorKind classifies a fatal condition.
type ErrorKind = solver.ErrorKind

// SolveError is attached to Result.Err when a run fails.
type SolveError = solver.SolveError

const (
	StatusConverged         = solver.StatusConverged
	StatusMaxIterations     = solver.StatusMaxIterations
	StatusMaxFunEvals       = solver.StatusMaxFunEvals
	StatusTimeLimit         = solver.StatusTimeLimit
	StatusCancelled         = solver.StatusCancelled
	StatusStepSizeExhausted = solver.StatusStepSizeExhausted
	StatusOracleError       = solver.StatusOracleError
	StatusDimensionMismatch = solver.StatusDimensionMismatch
)

const (
	KindNone              = solver.KindNone
	KindDimensionMismatch = solver.KindDimensionMismatch
	KindOracle            = solver.KindOracle
	KindStepSizeExhausted = solver.KindStepSizeExhausted
	KindConfiguration     = solver.KindConfiguration
)

// ErrStepSizeExhausted is wrapped by Result.Err when backtracking gives up.
var ErrStepSizeExhausted = solver.ErrStepSizeExhausted

// KindOf returns the ErrorKind carried by err.
func KindOf(err error) ErrorKind {
	return solver.KindOf(err)
}

// Solve minimizes f + g from x0. See the package documentation.
func Solve(ctx context.Context, x0 []float64, f Smooth, g Proximal, opts Options) (*Result, error) {
	return solver.Solve(ctx, x0, f, g, opts)
}
