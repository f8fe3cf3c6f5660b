// Package vec holds the vector primitives the solver is built on.
//
// Every operation is pure: inputs are never modified and results are freshly
// allocated. Binary operations check lengths up front and return
// ErrDimensionMismatch instead of letting gonum panic.
package vec

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// ErrDimensionMismatch is returned when two vectors of different length are combined.
var ErrDimensionMismatch = errors.New("vec: dimension mismatch")

// CheckLen returns ErrDimensionMismatch (with the offending lengths attached)
// unless len(a) == n.
func CheckLen(a []float64, n int) error {
	if len(a) != n {
		return errors.Wrapf(ErrDimensionMismatch, "got length %d, want %d", len(a), n)
	}
	return nil
}

func checkPair(a, b []float64) error {
	if len(a) != len(b) {
		return errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("lengths %d and %d", len(a), len(b)))
	}
	return nil
}

// Copy returns a copy of a. Copy(nil) returns an empty, non-nil slice.
func Copy(a []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	return out
}

// Add returns a + b.
func Add(a, b []float64) ([]float64, error) {
	if err := checkPair(a, b); err != nil {
		return nil, err
	}
	return floats.AddTo(make([]float64, len(a)), a, b), nil
}

// Sub returns a - b.
func Sub(a, b []float64) ([]float64, error) {
	if err := checkPair(a, b); err != nil {
		return nil, err
	}
	return floats.SubTo(make([]float64, len(a)), a, b), nil
}

// Scale returns c * a.
func Scale(a []float64, c float64) []float64 {
	return floats.ScaleTo(make([]float64, len(a)), c, a)
}

// Axpy returns a + c*b.
func Axpy(a []float64, c float64, b []float64) ([]float64, error) {
	if err := checkPair(a, b); err != nil {
		return nil, err
	}
	return floats.AddScaledTo(make([]float64, len(a)), a, c, b), nil
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	return floats.Dot(a, b), nil
}

// Norm2 returns the Euclidean norm of a. The norm of an empty vector is 0.
func Norm2(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Norm(a, 2)
}

// NormInf returns the max-abs norm of a.
func NormInf(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Norm(a, math.Inf(1))
}

// Distance returns ||a - b||_2.
func Distance(a, b []float64) (float64, error) {
	if err := checkPair(a, b); err != nil {
		return 0, err
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Distance(a, b, 2), nil
}

// AllFinite reports whether every component of a is neither NaN nor ±Inf.
func AllFinite(a []float64) bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
