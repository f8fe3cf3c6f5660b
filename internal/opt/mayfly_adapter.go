package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinPopulation is the smallest population mayfly v0.1.0 accepts.
const MinPopulation = 20

// MayflyAdapter runs the Mayfly algorithm over a box with per-dimension
// bounds.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly searcher. Results are reproducible for a fixed
// seed.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Search implements Searcher. The library only supports one scalar range,
// so the search runs on the unit cube and positions are mapped onto the box.
// Mayfly cannot be interrupted; once ctx is done every further evaluation
// returns +Inf and the context error is reported at the end.
func (m *MayflyAdapter) Search(ctx context.Context, objective func([]float64) float64, lower, upper []float64) (Candidate, error) {
	if err := checkBox(lower, upper); err != nil {
		return Candidate{}, err
	}
	if m.popSize < MinPopulation {
		return Candidate{}, fmt.Errorf("population %d is below the minimum of %d", m.popSize, MinPopulation)
	}
	if m.maxIters <= 0 {
		return Candidate{}, fmt.Errorf("iterations must be positive, got %d", m.maxIters)
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}

	dim := len(lower)
	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			ui := math.Min(math.Max(u[i], 0), 1)
			x[i] = lower[i] + ui*(upper[i]-lower[i])
		}
		return x
	}

	evals := 0
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		if ctx.Err() != nil {
			return math.Inf(1)
		}
		evals++
		v := objective(toBox(u))
		if math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return Candidate{}, fmt.Errorf("mayfly search failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}

	return Candidate{
		X:         toBox(result.GlobalBest.Position),
		Objective: result.GlobalBest.Cost,
		Evals:     evals,
	}, nil
}
