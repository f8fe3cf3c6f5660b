package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/proxgrad/internal/oracle"
)

// quadratic returns f(x) = 0.5 x'Ax - b'x and its gradient Ax - b.
func quadratic(a mat.Matrix, b []float64) oracle.ValueGradFunc {
	n := len(b)
	bv := mat.NewVecDense(n, b)
	return func(x []float64) (float64, []float64, error) {
		xv := mat.NewVecDense(n, x)
		var ax mat.VecDense
		ax.MulVec(a, xv)
		f := 0.5*mat.Dot(xv, &ax) - mat.Dot(bv, xv)
		var g mat.VecDense
		g.SubVec(&ax, bv)
		return f, g.RawVector().Data, nil
	}
}

// diagQuadratic is quadratic with a diagonal matrix.
func diagQuadratic(diag, b []float64) oracle.ValueGradFunc {
	return quadratic(mat.NewDiagDense(len(diag), diag), b)
}

// softThreshold is the prox of lambda*||x||_1, with its value.
func softThreshold(lambda float64) oracle.Regularizer {
	return oracle.Regularizer{
		ProxFn: func(v []float64, t float64) ([]float64, error) {
			out := make([]float64, len(v))
			for i, vi := range v {
				out[i] = math.Copysign(math.Max(math.Abs(vi)-lambda*t, 0), vi)
			}
			return out, nil
		},
		ValueFn: func(x []float64) (float64, error) {
			return lambda * floats.Norm(x, 1), nil
		},
	}
}

// countingValueGrad wraps fn and lets a hook tamper with the result of the
// n-th call (1-based).
func countingValueGrad(fn oracle.ValueGradFunc, hook func(call int, f float64, g []float64) (float64, []float64, error)) oracle.ValueGradFunc {
	calls := 0
	return func(x []float64) (float64, []float64, error) {
		calls++
		f, g, err := fn(x)
		if err != nil {
			return f, g, err
		}
		return hook(calls, f, g)
	}
}

func strictOptions() Options {
	opts := DefaultOptions()
	opts.TolF = 0
	opts.TolX = 0
	opts.TolGrad = 1e-9
	opts.MaxIter = 20000
	return opts
}
