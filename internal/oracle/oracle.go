// Package oracle wraps the caller-supplied smooth and proximal oracles behind
// a fixed contract: dimension checks, finite-value checks, panic recovery and
// evaluation counting. The adapter never retries a failed call.
package oracle

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cwbudde/proxgrad/internal/vec"
)

// Smooth evaluates the smooth part f and its gradient at x.
type Smooth interface {
	ValueGrad(x []float64) (float64, []float64, error)
}

// Proximal evaluates prox_g(v, t) = argmin_x (1/2t)||x-v||^2 + g(x) for t > 0.
type Proximal interface {
	Prox(v []float64, t float64) ([]float64, error)
}

// Valuer evaluates the non-smooth part g at x. A Proximal that also
// implements Valuer contributes g(x) to reported objectives; otherwise g is
// counted as zero.
type Valuer interface {
	Value(x []float64) (float64, error)
}

// ValueGradFunc adapts a plain function to Smooth.
type ValueGradFunc func(x []float64) (float64, []float64, error)

// ValueGrad implements Smooth.
func (f ValueGradFunc) ValueGrad(x []float64) (float64, []float64, error) { return f(x) }

// ProxFunc adapts a plain function to Proximal.
type ProxFunc func(v []float64, t float64) ([]float64, error)

// Prox implements Proximal.
func (f ProxFunc) Prox(v []float64, t float64) ([]float64, error) { return f(v, t) }

// ValueFunc evaluates g.
type ValueFunc func(x []float64) (float64, error)

// Regularizer bundles a prox operator with the value of its function.
type Regularizer struct {
	ProxFn  ProxFunc
	ValueFn ValueFunc
}

// Prox implements Proximal.
func (r Regularizer) Prox(v []float64, t float64) ([]float64, error) { return r.ProxFn(v, t) }

// Value implements Valuer. A nil ValueFn reports 0.
func (r Regularizer) Value(x []float64) (float64, error) {
	if r.ValueFn == nil {
		return 0, nil
	}
	return r.ValueFn(x)
}

// Identity is the proximal operator of g = 0.
var Identity = Regularizer{
	ProxFn: func(v []float64, _ float64) ([]float64, error) { return vec.Copy(v), nil },
}

// Error is returned when an oracle call fails, panics, returns non-finite
// data or a vector of the wrong dimension.
type Error struct {
	Op        string // "value-grad", "prox" or "value"
	Iteration int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s failed at iteration %d: %v", e.Op, e.Iteration, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	// ErrNonFinite marks a NaN or ±Inf value returned by an oracle.
	ErrNonFinite = errors.New("oracle: non-finite value")
	// ErrBadStep marks a prox request with t <= 0.
	ErrBadStep = errors.New("oracle: step size must be positive")
	// ErrPanic marks a recovered panic inside a caller oracle.
	ErrPanic = errors.New("oracle: panic in caller function")
)
