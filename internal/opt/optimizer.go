// Package opt provides derivative-free global searches used to pick a
// starting point before the proximal-gradient solver takes over.
package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Candidate is the best point a search found.
type Candidate struct {
	X         []float64
	Objective float64
	Evals     int
}

// Searcher explores the box lower <= x <= upper using objective values only.
type Searcher interface {
	Search(ctx context.Context, objective func([]float64) float64, lower, upper []float64) (Candidate, error)
}

// WarmStart runs the searcher and returns whichever of x0 and the found
// candidate has the lower objective.
func WarmStart(ctx context.Context, s Searcher, objective func([]float64) float64, x0, lower, upper []float64) ([]float64, error) {
	cand, err := s.Search(ctx, objective, lower, upper)
	if err != nil {
		return nil, err
	}
	base := objective(x0)
	slog.Info("Warm start finished",
		"evals", cand.Evals,
		"candidate_objective", cand.Objective,
		"start_objective", base,
	)
	if cand.Objective < base || math.IsNaN(base) {
		return cand.X, nil
	}
	return append([]float64(nil), x0...), nil
}

func checkBox(lower, upper []float64) error {
	if len(lower) == 0 {
		return fmt.Errorf("search box is empty")
	}
	if len(lower) != len(upper) {
		return fmt.Errorf("bounds have lengths %d and %d", len(lower), len(upper))
	}
	for i := range lower {
		if math.IsInf(lower[i], 0) || math.IsInf(upper[i], 0) || math.IsNaN(lower[i]) || math.IsNaN(upper[i]) {
			return fmt.Errorf("bound %d must be finite", i)
		}
		if lower[i] > upper[i] {
			return fmt.Errorf("bound %d is empty: [%v, %v]", i, lower[i], upper[i])
		}
	}
	return nil
}
