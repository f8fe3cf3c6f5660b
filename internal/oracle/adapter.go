package oracle

import (
	"math"

	"github.com/pkg/errors"

	"github.com/cwbudde/proxgrad/internal/vec"
)

// Counts reports how often the caller's oracles were actually invoked.
type Counts struct {
	FunEvals   int
	ProxEvals  int
	ValueEvals int
}

// Adapter enforces the oracle contract for one solve. It is not safe for
// concurrent use; each solve owns its own Adapter.
type Adapter struct {
	smooth Smooth
	prox   Proximal
	valuer Valuer
	dim    int

	iteration int
	counts    Counts

	// last ValueGrad evaluation
	cacheX    []float64
	cacheF    float64
	cacheGrad []float64
}

// NewAdapter builds an adapter for vectors of dimension dim.
func NewAdapter(dim int, smooth Smooth, prox Proximal) *Adapter {
	a := &Adapter{smooth: smooth, prox: prox, dim: dim}
	if v, ok := prox.(Valuer); ok {
		a.valuer = v
	}
	return a
}

// Dim returns the fixed dimension of the run.
func (a *Adapter) Dim() int { return a.dim }

// HasValuer reports whether g contributes to objectives.
func (a *Adapter) HasValuer() bool { return a.valuer != nil }

// SetIteration sets the iteration index attached to subsequent errors.
func (a *Adapter) SetIteration(k int) { a.iteration = k }

// Counts returns the evaluation counters.
func (a *Adapter) Counts() Counts { return a.counts }

// ValueGrad evaluates f and grad f at x. Repeating the last point returns the
// cached result without calling the oracle.
func (a *Adapter) ValueGrad(x []float64) (float64, []float64, error) {
	if err := vec.CheckLen(x, a.dim); err != nil {
		return 0, nil, a.fail("value-grad", errors.Wrap(err, "input"))
	}
	if a.cacheX != nil && sameBits(a.cacheX, x) {
		return a.cacheF, vec.Copy(a.cacheGrad), nil
	}

	var (
		f    float64
		grad []float64
	)
	err := guard(func() error {
		var err error
		f, grad, err = a.smooth.ValueGrad(vec.Copy(x))
		return err
	})
	a.counts.FunEvals++
	if err != nil {
		return 0, nil, a.fail("value-grad", err)
	}
	if err := vec.CheckLen(grad, a.dim); err != nil {
		return 0, nil, a.fail("value-grad", errors.Wrap(err, "gradient"))
	}
	if !vec.IsFinite(f) {
		return 0, nil, a.fail("value-grad", errors.Wrapf(ErrNonFinite, "f = %v", f))
	}
	if !vec.AllFinite(grad) {
		return 0, nil, a.fail("value-grad", errors.Wrap(ErrNonFinite, "gradient"))
	}

	a.cacheX = vec.Copy(x)
	a.cacheF = f
	a.cacheGrad = vec.Copy(grad)
	return f, grad, nil
}

// Prox evaluates prox_g(v, t).
func (a *Adapter) Prox(v []float64, t float64) ([]float64, error) {
	if !(t > 0) || math.IsInf(t, 0) {
		return nil, a.fail("prox", errors.Wrapf(ErrBadStep, "t = %v", t))
	}
	if err := vec.CheckLen(v, a.dim); err != nil {
		return nil, a.fail("prox", errors.Wrap(err, "input"))
	}

	var out []float64
	err := guard(func() error {
		var err error
		out, err = a.prox.Prox(vec.Copy(v), t)
		return err
	})
	a.counts.ProxEvals++
	if err != nil {
		return nil, a.fail("prox", err)
	}
	if err := vec.CheckLen(out, a.dim); err != nil {
		return nil, a.fail("prox", errors.Wrap(err, "output"))
	}
	if !vec.AllFinite(out) {
		return nil, a.fail("prox", errors.Wrap(ErrNonFinite, "output"))
	}
	return out, nil
}

// NonSmoothValue evaluates g(x), or 0 when the proximal oracle carries no value.
func (a *Adapter) NonSmoothValue(x []float64) (float64, error) {
	if a.valuer == nil {
		return 0, nil
	}
	var g float64
	err := guard(func() error {
		var err error
		g, err = a.valuer.Value(vec.Copy(x))
		return err
	})
	a.counts.ValueEvals++
	if err != nil {
		return 0, a.fail("value", err)
	}
	if !vec.IsFinite(g) {
		return 0, a.fail("value", errors.Wrapf(ErrNonFinite, "g = %v", g))
	}
	return g, nil
}

func (a *Adapter) fail(op string, err error) error {
	return &Error{Op: op, Iteration: a.iteration, Err: err}
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrPanic, "%v", r)
		}
	}()
	return fn()
}

func sameBits(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}
