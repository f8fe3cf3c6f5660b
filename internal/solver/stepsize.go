package solver

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/vec"
)

// minStepSize is the floor below which backtracking gives up regardless of
// the remaining shrink budget.
const minStepSize = 1e-20

// trialPoint is an accepted proximal-gradient step.
type trialPoint struct {
	x          []float64
	f          float64 // smooth part at x
	t          float64
	backtracks int
}

// stepSizeController picks t_k by backtracking on the proximal-gradient
// sufficient-decrease condition
//
//	f(x+) <= f(y) + <grad f(y), x+ - y> + ||x+ - y||^2 / (2t),  x+ = prox(y - t grad f(y), t).
//
// The next search starts from the last accepted step, or from a
// Barzilai-Borwein step when bb is set.
type stepSizeController struct {
	beta         float64
	eps          float64
	maxBacktrack int
	grow         bool
	bb           bool

	t float64

	// previous search point and its gradient, for the bb seed
	lastY, lastG []float64
}

// Barzilai-Borwein steps outside (bbMin, bbMax) fall back to
// min(1, 1/||grad||_1).
const (
	bbMin = 1e-9
	bbMax = 1e9
)

func newStepSizeController(opts Options) *stepSizeController {
	return &stepSizeController{
		beta:         opts.Beta,
		eps:          opts.EpsDecrease,
		maxBacktrack: opts.MaxBacktrack,
		grow:         opts.StepGrowth,
		bb:           opts.InitialStep == InitialStepBB,
		t:            opts.T0,
	}
}

// current returns the step the next search will start from.
func (c *stepSizeController) current() float64 { return c.t }

// search returns the first trial point that satisfies sufficient decrease,
// shrinking t by beta after every failure.
func (c *stepSizeController) search(a *oracle.Adapter, y []float64, fy float64, gy []float64) (trialPoint, error) {
	t := c.t
	if c.bb {
		var err error
		if t, err = c.seed(y, gy); err != nil {
			return trialPoint{}, err
		}
	}
	for shrinks := 0; ; shrinks++ {
		v, err := vec.Axpy(y, -t, gy)
		if err != nil {
			return trialPoint{}, err
		}
		x, err := a.Prox(v, t)
		if err != nil {
			return trialPoint{}, err
		}
		fx, _, err := a.ValueGrad(x)
		if err != nil {
			return trialPoint{}, err
		}

		ok, err := c.sufficientDecrease(x, fx, y, fy, gy, t)
		if err != nil {
			return trialPoint{}, err
		}
		if ok {
			c.t = t
			if c.grow && shrinks == 0 {
				c.t = t / c.beta
			}
			return trialPoint{x: x, f: fx, t: t, backtracks: shrinks}, nil
		}

		if shrinks >= c.maxBacktrack {
			return trialPoint{}, errors.Wrapf(ErrStepSizeExhausted, "no acceptable step after %d shrinks (t = %g)", shrinks, t)
		}
		t *= c.beta
		if t < minStepSize {
			return trialPoint{}, errors.Wrapf(ErrStepSizeExhausted, "step size fell below %g", minStepSize)
		}
	}
}

// seed returns the first trial step for a search from y. In bb mode this is
// <s,r>/<r,r> with s = y - y_prev and r = grad f(y) - grad f(y_prev); the
// first search uses the current step.
func (c *stepSizeController) seed(y, gy []float64) (float64, error) {
	prevY, prevG := c.lastY, c.lastG
	c.lastY, c.lastG = vec.Copy(y), vec.Copy(gy)
	if prevY == nil {
		return c.t, nil
	}

	s, err := vec.Sub(y, prevY)
	if err != nil {
		return 0, err
	}
	r, err := vec.Sub(gy, prevG)
	if err != nil {
		return 0, err
	}
	sr, err := vec.Dot(s, r)
	if err != nil {
		return 0, err
	}
	rr, err := vec.Dot(r, r)
	if err != nil {
		return 0, err
	}
	if t := sr / rr; t > bbMin && t < bbMax {
		return t, nil
	}
	return math.Min(1, 1/floats.Norm(gy, 1)), nil
}

// sufficientDecrease evaluates the quadratic upper-bound test. An excess no
// larger than eps*max(1, |f(y)|) still counts as satisfied.
func (c *stepSizeController) sufficientDecrease(x []float64, fx float64, y []float64, fy float64, gy []float64, t float64) (bool, error) {
	d, err := vec.Sub(x, y)
	if err != nil {
		return false, err
	}
	lin, err := vec.Dot(gy, d)
	if err != nil {
		return false, err
	}
	dn := vec.Norm2(d)
	bound := fy + lin + dn*dn/(2*t)
	return fx-bound <= c.eps*math.Max(1, math.Abs(fy)), nil
}
