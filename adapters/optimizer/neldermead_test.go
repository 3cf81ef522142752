package optimizer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StFroese/titrate/adapters/optimizer"
)

func TestMinimize_Quadratic(t *testing.T) {
	nm := optimizer.New(1e-8, 10000)

	f := func(x []float64) float64 {
		dx := x[0] - 3
		dy := x[1] + 1
		return dx*dx + dy*dy
	}

	result, err := nm.Minimize(context.Background(), f,
		[]float64{0, 0}, []float64{-10, -10}, []float64{10, 10})
	require.NoError(t, err)
	require.True(t, result.Converged)
	require.InDelta(t, 3.0, result.X[0], 0.01)
	require.InDelta(t, -1.0, result.X[1], 0.01)
	require.InDelta(t, 0.0, result.F, 1e-4)
	require.Greater(t, result.FuncEvaluations, 0)
}

func TestMinimize_HonorsBounds(t *testing.T) {
	nm := optimizer.New(1e-8, 10000)

	// Unconstrained minimum at x=-5, outside the box; the search must
	// settle at the lower bound, never below it.
	f := func(x []float64) float64 {
		d := x[0] + 5
		return d * d
	}

	result, err := nm.Minimize(context.Background(), f,
		[]float64{2}, []float64{0}, []float64{10})
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.X[0], 0.0)
	require.InDelta(t, 0.0, result.X[0], 0.05)
}

func TestMinimize_StartOutsideBoundsIsClamped(t *testing.T) {
	nm := optimizer.New(1e-8, 10000)

	f := func(x []float64) float64 { return x[0] * x[0] }

	result, err := nm.Minimize(context.Background(), f,
		[]float64{50}, []float64{-1}, []float64{1})
	require.NoError(t, err)
	require.InDelta(t, 0.0, result.X[0], 0.01)
}

func TestMinimize_InvalidInput(t *testing.T) {
	nm := optimizer.New(1e-8, 1000)
	f := func(x []float64) float64 { return 0 }

	_, err := nm.Minimize(context.Background(), f, nil, nil, nil)
	require.Error(t, err)

	_, err = nm.Minimize(context.Background(), f, []float64{0}, []float64{1}, []float64{-1})
	require.Error(t, err)

	_, err = nm.Minimize(context.Background(), f, []float64{0}, []float64{0}, []float64{0, 1})
	require.Error(t, err)
}
