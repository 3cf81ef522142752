package significance_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/internal/significance"
	"github.com/StFroese/titrate/internal/testkit"
)

func newCalculator() *significance.Calculator {
	return significance.NewCalculator(testkit.NewCalculator(), config.Default().Limit)
}

func TestPValueAsymptotic_KnownValues(t *testing.T) {
	tests := []struct {
		name  string
		q     float64
		kind  hypotest.Kind
		want  float64
		delta float64
	}{
		{name: "q0 at zero is median", q: 0, kind: hypotest.KindQ0, want: 0.5, delta: 1e-12},
		{name: "q0 one-sided 95%", q: 2.706, kind: hypotest.KindQ0, want: 0.05, delta: 1e-3},
		{name: "q_tilde one-sided 95%", q: 2.706, kind: hypotest.KindQTildeMu, want: 0.05, delta: 1e-3},
		{name: "q_mu chi-square 95%", q: 3.841, kind: hypotest.KindQMu, want: 0.05, delta: 1e-3},
		{name: "negative q clamped", q: -1, kind: hypotest.KindQ0, want: 0.5, delta: 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := significance.PValueAsymptotic(tt.q, tt.kind)
			require.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestZValue(t *testing.T) {
	require.InDelta(t, 0.0, significance.ZValue(0.5), 1e-12)
	require.InDelta(t, 1.6449, significance.ZValue(0.05), 1e-3)
	require.InDelta(t, 5.0, significance.ZValue(2.8665e-7), 1e-3)
	require.True(t, math.IsInf(significance.ZValue(0), 1))
	require.Less(t, significance.ZValue(0.9), 0.0)
}

func TestPValueEmpirical(t *testing.T) {
	dist, err := hypotest.NewDistribution(hypotest.KindQ0, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 99; i++ {
		dist.Append(hypotest.TestStatisticSample{Value: float64(i), ToyIndex: i})
	}

	p, err := significance.PValueEmpirical(95, dist)
	require.NoError(t, err)
	require.InDelta(t, 0.05, p, 1e-12) // 4 samples >= 95, (4+1)/(99+1)

	p, err = significance.PValueEmpirical(1000, dist)
	require.NoError(t, err)
	require.Greater(t, p, 0.0, "empirical p-value must never be exactly zero")
}

func TestExpectedSignificance_GrowsWithInjectedSignal(t *testing.T) {
	calc := newCalculator()
	template := testkit.MustCountingExperiment()
	ctx := context.Background()

	weak, err := calc.ExpectedSignificance(ctx, template, 2)
	require.NoError(t, err)
	strong, err := calc.ExpectedSignificance(ctx, template, 5)
	require.NoError(t, err)

	require.Greater(t, weak, 0.0)
	require.Greater(t, strong, weak)
}

func TestExpectedSignificance_BackgroundOnlyIsZero(t *testing.T) {
	calc := newCalculator()

	z, err := calc.ExpectedSignificance(context.Background(), testkit.MustCountingExperiment(), 0)
	require.NoError(t, err)
	require.InDelta(t, 0.0, z, 0.05)
}

func TestLimit_MonotoneInConfidenceLevel(t *testing.T) {
	calc := newCalculator()
	template := testkit.MustCountingExperiment()
	ctx := context.Background()

	var prev float64
	for _, cl := range []float64{0.68, 0.90, 0.95} {
		limit, err := calc.ExpectedLimit(ctx, template, cl, hypotest.KindQTildeMu)
		require.NoError(t, err)
		require.Greater(t, limit, 0.0)
		require.GreaterOrEqual(t, limit, prev, "limit must not decrease with confidence level")
		prev = limit
	}
	require.Less(t, prev, 50.0, "background-only expected limit implausibly large")
}

func TestLimit_InputValidation(t *testing.T) {
	calc := newCalculator()
	ds := testkit.MustSimpleCounting(4, 1, 10)
	ctx := context.Background()

	_, err := calc.Limit(ctx, ds, 1.5, hypotest.KindQTildeMu)
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, err = calc.Limit(ctx, ds, 0.95, hypotest.KindQ0)
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestValidateAsymptotics(t *testing.T) {
	chi2 := distuv.ChiSquared{K: 1}

	// Samples placed exactly on the half-chi-square quantile grid.
	matching, err := hypotest.NewDistribution(hypotest.KindQ0, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		p := (float64(i) + 0.5) / 1000
		v := 0.0
		if p > 0.5 {
			v = chi2.Quantile(2*p - 1)
		}
		matching.Append(hypotest.TestStatisticSample{Value: v, ToyIndex: i})
	}

	validation, err := significance.ValidateAsymptotics(matching, 0.2)
	require.NoError(t, err)
	require.True(t, validation.Valid)
	require.Len(t, validation.Checks, 3)
	require.Equal(t, 1000, validation.N)

	// A grossly shifted distribution must fail the check.
	shifted, err := hypotest.NewDistribution(hypotest.KindQ0, 0, 0)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		shifted.Append(hypotest.TestStatisticSample{Value: 5, ToyIndex: i})
	}
	validation, err = significance.ValidateAsymptotics(shifted, 0.2)
	require.NoError(t, err)
	require.False(t, validation.Valid)

	_, err = significance.ValidateAsymptotics(&hypotest.Distribution{Kind: hypotest.KindQ0}, 0.2)
	require.Error(t, err)
}
