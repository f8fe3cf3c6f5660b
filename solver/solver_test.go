package solver_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/proxgrad/solver"
)

func TestSolve_PublicErrors(t *testing.T) {
	f := solver.ValueGradFunc(func(x []float64) (float64, []float64, error) {
		return x[0] * x[0], []float64{2 * x[0], 0}, nil
	})

	res, err := solver.Solve(context.Background(), []float64{1}, f, solver.Identity, solver.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, solver.StatusDimensionMismatch, res.Status)
	assert.Equal(t, solver.KindDimensionMismatch, res.ErrKind())

	var serr *solver.SolveError
	assert.True(t, errors.As(res.Err, &serr))

	_, err = solver.DecodeOptions(map[string]interface{}{"beta": 2.0})
	var cerr *solver.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "beta", cerr.Field)
	assert.Equal(t, solver.KindConfiguration, solver.KindOf(err))
}
