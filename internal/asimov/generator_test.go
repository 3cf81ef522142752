package asimov_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StFroese/titrate/internal/asimov"
	"github.com/StFroese/titrate/internal/testkit"
)

func TestBuild_Deterministic(t *testing.T) {
	template := testkit.MustCountingExperiment()

	first, err := asimov.Build(template, 5)
	require.NoError(t, err)
	second, err := asimov.Build(template, 5)
	require.NoError(t, err)

	require.Equal(t, first.Counts(), second.Counts(), "asimov builds must be bit-identical")
}

func TestBuild_TemplateUntouched(t *testing.T) {
	template := testkit.MustCountingExperiment()
	countsBefore := append([]float64(nil), template.Counts()...)
	paramsBefore := template.Params().Values()

	_, err := asimov.Build(template, 3)
	require.NoError(t, err)

	require.Equal(t, countsBefore, template.Counts())
	require.Equal(t, paramsBefore, template.Params().Values())
}

func TestBuild_CountsEqualExpectation(t *testing.T) {
	template := testkit.MustSimpleCounting(6, 2, 10)

	ds, err := asimov.Build(template, 3)
	require.NoError(t, err)

	// Expectation at mu=3 over the fixed background: 3*2 + 10 per bin.
	for i, n := range ds.Counts() {
		require.Equal(t, 16.0, n, "bin %d", i)
	}
}
