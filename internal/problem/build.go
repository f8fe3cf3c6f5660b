package problem

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/functions"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/solver"
)

// Problem is a spec turned into solver inputs.
type Problem struct {
	Name    string
	Kind    Kind
	Smooth  oracle.Smooth
	Prox    oracle.Proximal
	X0      []float64
	Options solver.Options
	Lower   []float64
	Upper   []float64
}

// Build validates s and constructs its oracles. Options are decoded
// on top of the solver defaults.
func (s *Spec) Build() (*Problem, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	opts, err := solver.DecodeOptions(s.Options)
	if err != nil {
		return nil, err
	}

	n := s.Dimension()
	p := &Problem{
		Name:    s.Name,
		Kind:    s.Kind,
		X0:      make([]float64, n),
		Options: opts,
		Lower:   append([]float64(nil), s.Lower...),
		Upper:   append([]float64(nil), s.Upper...),
	}
	copy(p.X0, s.X0)

	switch s.Kind {
	case KindQuadratic:
		p.Smooth = Quadratic(symmetric(s.A), s.B)
		p.Prox = oracle.Identity
	case KindBoxQuadratic:
		p.Smooth = Quadratic(symmetric(s.A), s.B)
		p.Prox = Box(s.Lower, s.Upper)
		p.X0 = clamp(p.X0, s.Lower, s.Upper)
	case KindLasso:
		p.Smooth = LeastSquares(dense(s.A), s.B)
		p.Prox = L1(s.Lambda)
	case KindRosenbrock:
		p.Smooth = Rosenbrock()
		p.Prox = oracle.Identity
		if s.HasBox() {
			p.Prox = Box(s.Lower, s.Upper)
			p.X0 = clamp(p.X0, s.Lower, s.Upper)
		}
	}
	return p, nil
}

// Objective evaluates F(x) = f(x) + g(x). Failures evaluate to +Inf so that
// derivative-free searches simply avoid them.
func (p *Problem) Objective(x []float64) float64 {
	f, _, err := p.Smooth.ValueGrad(x)
	if err != nil || math.IsNaN(f) {
		return math.Inf(1)
	}
	if v, ok := p.Prox.(oracle.Valuer); ok {
		g, err := v.Value(x)
		if err != nil || math.IsNaN(g) {
			return math.Inf(1)
		}
		f += g
	}
	return f
}

func symmetric(rows [][]float64) *mat.SymDense {
	n := len(rows)
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a.SetSym(i, j, rows[i][j])
		}
	}
	return a
}

func dense(rows [][]float64) *mat.Dense {
	a := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	return a
}

// Quadratic returns f(x) = 0.5 x'Ax - b'x with gradient Ax - b.
func Quadratic(a mat.Symmetric, b []float64) oracle.ValueGradFunc {
	n := len(b)
	bv := mat.NewVecDense(n, append([]float64(nil), b...))
	return func(x []float64) (float64, []float64, error) {
		xv := mat.NewVecDense(n, x)
		grad := mat.NewVecDense(n, nil)
		grad.MulVec(a, xv)
		f := 0.5*mat.Dot(xv, grad) - mat.Dot(bv, xv)
		grad.SubVec(grad, bv)
		return f, grad.RawVector().Data, nil
	}
}

// LeastSquares returns f(x) = 0.5 ||Ax - b||^2 with gradient A'(Ax - b).
func LeastSquares(a mat.Matrix, b []float64) oracle.ValueGradFunc {
	m, n := a.Dims()
	bv := mat.NewVecDense(m, append([]float64(nil), b...))
	return func(x []float64) (float64, []float64, error) {
		r := mat.NewVecDense(m, nil)
		r.MulVec(a, mat.NewVecDense(n, x))
		r.SubVec(r, bv)
		grad := mat.NewVecDense(n, nil)
		grad.MulVec(a.T(), r)
		return 0.5 * mat.Dot(r, r), grad.RawVector().Data, nil
	}
}

// Rosenbrock returns the extended Rosenbrock function. It is non-convex, so
// the solver only finds a stationary point.
func Rosenbrock() oracle.ValueGradFunc {
	fn := functions.ExtendedRosenbrock{}
	return func(x []float64) (float64, []float64, error) {
		grad := make([]float64, len(x))
		fn.Grad(grad, x)
		return fn.Func(x), grad, nil
	}
}

// L1 is the soft-thresholding operator, the prox of lambda ||x||_1.
func L1(lambda float64) oracle.Regularizer {
	return oracle.Regularizer{
		ProxFn: func(v []float64, t float64) ([]float64, error) {
			out := make([]float64, len(v))
			k := lambda * t
			for i, vi := range v {
				out[i] = math.Copysign(math.Max(math.Abs(vi)-k, 0), vi)
			}
			return out, nil
		},
		ValueFn: func(x []float64) (float64, error) {
			return lambda * floats.Norm(x, 1), nil
		},
	}
}

// Box is the projection onto lower <= x <= upper, the prox of the box
// indicator. Its value is 0 inside the box and +Inf outside.
func Box(lower, upper []float64) oracle.Regularizer {
	lo := append([]float64(nil), lower...)
	hi := append([]float64(nil), upper...)
	return oracle.Regularizer{
		ProxFn: func(v []float64, _ float64) ([]float64, error) {
			return clamp(v, lo, hi), nil
		},
		ValueFn: func(x []float64) (float64, error) {
			for i, xi := range x {
				if xi < lo[i] || xi > hi[i] {
					return math.Inf(1), nil
				}
			}
			return 0, nil
		},
	}
}

func clamp(v, lower, upper []float64) []float64 {
	out := make([]float64, len(v))
	for i, vi := range v {
		out[i] = math.Min(math.Max(vi, lower[i]), upper[i])
	}
	return out
}
