package solver

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/vec"
)

// stepResult describes one committed iteration.
type stepResult struct {
	iteration  int
	objPrev    float64
	objective  float64
	stepNorm   float64 // ||x_{k+1} - x_k||
	prevNorm   float64 // ||x_k||
	t          float64
	backtracks int
	restarted  bool
}

// gradMapNorm returns ||(x_k - x_{k+1}) / t_k||.
func (s stepResult) gradMapNorm() float64 { return s.stepNorm / s.t }

// iterator is the FISTA state machine. All of its state belongs to a single
// solve.
type iterator struct {
	state   State
	adapter *oracle.Adapter
	steps   *stepSizeController
	restart bool

	x, xPrev  []float64
	objective float64 // F(x)

	// FISTA sequence: theta is theta_k, thetaPrev is theta_{k-1}.
	theta, thetaPrev float64
	k                int
}

func newIterator(adapter *oracle.Adapter, steps *stepSizeController, restart bool) *iterator {
	return &iterator{
		state:     StateInit,
		adapter:   adapter,
		steps:     steps,
		restart:   restart,
		theta:     1,
		thetaPrev: 1,
	}
}

// init evaluates the starting point. x0 is owned by the iterator afterwards.
func (it *iterator) init(x0 []float64) error {
	if it.state != StateInit {
		return errors.WithStack(ErrTerminal)
	}
	fx, _, err := it.adapter.ValueGrad(x0)
	if err != nil {
		return err
	}
	gx, err := it.adapter.NonSmoothValue(x0)
	if err != nil {
		return err
	}
	it.x = x0
	it.objective = fx + gx
	return nil
}

// stationarity returns the gradient-mapping norm at the current point for
// step t, ||x - prox(x - t grad f(x), t)|| / t.
func (it *iterator) stationarity(t float64) (float64, error) {
	_, g, err := it.adapter.ValueGrad(it.x)
	if err != nil {
		return 0, err
	}
	v, err := vec.Axpy(it.x, -t, g)
	if err != nil {
		return 0, err
	}
	p, err := it.adapter.Prox(v, t)
	if err != nil {
		return 0, err
	}
	d, err := vec.Distance(it.x, p)
	if err != nil {
		return 0, err
	}
	return d / t, nil
}

// momentum returns the extrapolation weight for the current step. It is zero
// on the first step and right after a restart.
func (it *iterator) momentum() float64 {
	if it.xPrev == nil {
		return 0
	}
	return (it.thetaPrev - 1) / it.theta
}

// step performs one accelerated proximal-gradient iteration and commits the
// new iterate. A failure moves the iterator to StateFailed.
func (it *iterator) step() (stepResult, error) {
	if it.state.Terminal() {
		return stepResult{}, errors.WithStack(ErrTerminal)
	}
	it.state = StateRunning
	it.adapter.SetIteration(it.k + 1)

	res, err := it.advance()
	if err != nil {
		it.state = StateFailed
		return stepResult{}, err
	}
	return res, nil
}

func (it *iterator) advance() (stepResult, error) {
	m := it.momentum()
	y := it.x
	if m != 0 {
		d, err := vec.Sub(it.x, it.xPrev)
		if err != nil {
			return stepResult{}, err
		}
		if y, err = vec.Axpy(it.x, m, d); err != nil {
			return stepResult{}, err
		}
	}

	tr, obj, err := it.trial(y)
	if err != nil {
		return stepResult{}, err
	}
	backtracks := tr.backtracks

	restarted := false
	if it.restart && m != 0 && obj > it.objective {
		slog.Debug("Objective increased, restarting momentum",
			"iteration", it.k+1,
			"objective", it.objective,
			"trial_objective", obj,
		)
		it.theta, it.thetaPrev = 1, 1
		if tr, obj, err = it.trial(it.x); err != nil {
			return stepResult{}, err
		}
		backtracks += tr.backtracks
		restarted = true
	}

	stepNorm, err := vec.Distance(tr.x, it.x)
	if err != nil {
		return stepResult{}, err
	}
	res := stepResult{
		iteration:  it.k + 1,
		objPrev:    it.objective,
		objective:  obj,
		stepNorm:   stepNorm,
		prevNorm:   vec.Norm2(it.x),
		t:          tr.t,
		backtracks: backtracks,
		restarted:  restarted,
	}

	it.xPrev, it.x = it.x, tr.x
	it.objective = obj
	it.thetaPrev, it.theta = it.theta, (1+math.Sqrt(1+4*it.theta*it.theta))/2
	it.k++
	return res, nil
}

// trial runs the step-size search from y and returns the accepted point with
// its composite objective.
func (it *iterator) trial(y []float64) (trialPoint, float64, error) {
	fy, gy, err := it.adapter.ValueGrad(y)
	if err != nil {
		return trialPoint{}, 0, err
	}
	tr, err := it.steps.search(it.adapter, y, fy, gy)
	if err != nil {
		return trialPoint{}, 0, err
	}
	g, err := it.adapter.NonSmoothValue(tr.x)
	if err != nil {
		return trialPoint{}, 0, err
	}
	return tr, tr.f + g, nil
}

// finish moves the iterator to a terminal state.
func (it *iterator) finish(s State) {
	if !it.state.Terminal() {
		it.state = s
	}
}
