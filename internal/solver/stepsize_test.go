package solver

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/proxgrad/internal/oracle"
)

func newTestController(t0 float64, grow bool) *stepSizeController {
	opts := DefaultOptions()
	opts.T0 = t0
	opts.StepGrowth = grow
	return newStepSizeController(opts)
}

func searchFrom(t *testing.T, c *stepSizeController, a *oracle.Adapter, y []float64) trialPoint {
	t.Helper()
	fy, gy, err := a.ValueGrad(y)
	require.NoError(t, err)
	tr, err := c.search(a, y, fy, gy)
	require.NoError(t, err)
	return tr
}

func TestStepSizeController_Backtracks(t *testing.T) {
	// L = 4, so any t <= 0.25 is accepted.
	a := oracle.NewAdapter(2, diagQuadratic([]float64{4, 1}, []float64{0, 0}), oracle.Identity)
	c := newTestController(1, false)

	tr := searchFrom(t, c, a, []float64{1, 1})
	assert.Equal(t, 0.25, tr.t)
	assert.Equal(t, 2, tr.backtracks)
	assert.Equal(t, 0.25, c.current())

	tr = searchFrom(t, c, a, tr.x)
	assert.Equal(t, 0.25, tr.t)
	assert.Equal(t, 0, tr.backtracks)
}

func TestStepSizeController_Growth(t *testing.T) {
	a := oracle.NewAdapter(2, diagQuadratic([]float64{1, 1}, []float64{0, 0}), oracle.Identity)
	c := newTestController(0.25, true)

	y := []float64{1, 1}
	tr := searchFrom(t, c, a, y)
	assert.Equal(t, 0.25, tr.t)
	assert.Equal(t, 0.5, c.current())

	tr = searchFrom(t, c, a, y)
	assert.Equal(t, 0.5, tr.t)
	assert.Equal(t, 1.0, c.current())

	tr = searchFrom(t, c, a, y)
	assert.Equal(t, 1.0, tr.t)
	assert.Equal(t, 2.0, c.current())

	// t = 2 overshoots L = 1 and is shrunk back without growing again.
	tr = searchFrom(t, c, a, y)
	assert.Equal(t, 1.0, tr.t)
	assert.Equal(t, 1, tr.backtracks)
	assert.Equal(t, 1.0, c.current())
}

func TestStepSizeController_NoGrowthByDefault(t *testing.T) {
	a := oracle.NewAdapter(2, diagQuadratic([]float64{1, 1}, []float64{0, 0}), oracle.Identity)
	c := newTestController(0.25, false)

	for i := 0; i < 3; i++ {
		tr := searchFrom(t, c, a, []float64{1, 1})
		assert.Equal(t, 0.25, tr.t)
	}
	assert.Equal(t, 0.25, c.current())
}

func TestStepSizeController_ZeroBudget(t *testing.T) {
	a := oracle.NewAdapter(2, diagQuadratic([]float64{4, 1}, []float64{0, 0}), oracle.Identity)
	opts := DefaultOptions()
	opts.MaxBacktrack = 0
	c := newStepSizeController(opts)

	fy, gy, err := a.ValueGrad([]float64{1, 1})
	require.NoError(t, err)
	_, err = c.search(a, []float64{1, 1}, fy, gy)
	assert.True(t, errors.Is(err, ErrStepSizeExhausted))
	assert.Equal(t, 1.0, c.current())
}

func TestStepSizeController_BarzilaiBorwein(t *testing.T) {
	// f = ||x||^2, so the BB step recovers 1/L = 0.5 after one search.
	a := oracle.NewAdapter(2, diagQuadratic([]float64{2, 2}, []float64{0, 0}), oracle.Identity)
	opts := DefaultOptions()
	opts.T0 = 0.1
	opts.InitialStep = InitialStepBB
	c := newStepSizeController(opts)

	tr := searchFrom(t, c, a, []float64{1, 1})
	assert.Equal(t, 0.1, tr.t)

	tr = searchFrom(t, c, a, tr.x)
	assert.InDelta(t, 0.5, tr.t, 1e-12)
	assert.Equal(t, 0, tr.backtracks)
	assert.InDelta(t, 0.0, tr.x[0], 1e-12)
	assert.InDelta(t, 0.0, tr.x[1], 1e-12)
}

func TestStepSizeController_BarzilaiBorweinFallback(t *testing.T) {
	a := oracle.NewAdapter(2, diagQuadratic([]float64{2, 2}, []float64{0, 0}), oracle.Identity)
	opts := DefaultOptions()
	opts.T0 = 0.1
	opts.InitialStep = InitialStepBB
	c := newStepSizeController(opts)

	// A repeated search point gives no curvature pair, so the seed falls
	// back to min(1, 1/||grad||_1) = 1/4.
	y := []float64{1, 1}
	searchFrom(t, c, a, y)
	tr := searchFrom(t, c, a, y)
	assert.Equal(t, 0.25, tr.t)
	assert.Equal(t, 0, tr.backtracks)
}

func TestStepSizeController_PreviousIgnoresCurvature(t *testing.T) {
	a := oracle.NewAdapter(2, diagQuadratic([]float64{2, 2}, []float64{0, 0}), oracle.Identity)
	c := newTestController(0.1, false)

	tr := searchFrom(t, c, a, []float64{1, 1})
	tr = searchFrom(t, c, a, tr.x)
	assert.Equal(t, 0.1, tr.t)
}

func TestStepSizeController_DecreaseSlack(t *testing.T) {
	// With t = 1/L the bound is tight: f(x+) = bound = 0 at y = [1, 1] where
	// f(y) = 4. Every evaluation after y is pushed up by 1e-14*|f(y)|.
	excess := 1e-14 * 4
	oracleWithExcess := func() *oracle.Adapter {
		f := countingValueGrad(diagQuadratic([]float64{4, 4}, []float64{0, 0}),
			func(call int, f float64, g []float64) (float64, []float64, error) {
				if call > 1 {
					f += excess
				}
				return f, g, nil
			})
		return oracle.NewAdapter(2, f, oracle.Identity)
	}

	tests := map[string]struct {
		eps     float64
		wantErr bool
	}{
		"default slack accepts": {eps: DefaultOptions().EpsDecrease},
		"no slack rejects":      {eps: 0, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a := oracleWithExcess()
			opts := DefaultOptions()
			opts.T0 = 0.25
			opts.MaxBacktrack = 0
			opts.EpsDecrease = tt.eps
			c := newStepSizeController(opts)

			y := []float64{1, 1}
			fy, gy, err := a.ValueGrad(y)
			require.NoError(t, err)
			require.Equal(t, 4.0, fy)

			tr, err := c.search(a, y, fy, gy)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrStepSizeExhausted), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0.25, tr.t)
			assert.Equal(t, 0, tr.backtracks)
			assert.Equal(t, excess, tr.f)
		})
	}
}
