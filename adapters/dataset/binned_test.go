package dataset_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StFroese/titrate/adapters/dataset"
	"github.com/StFroese/titrate/internal/errors"
)

func newTestDataset(t *testing.T) *dataset.Binned {
	t.Helper()
	ds, err := dataset.NewBinned("test", []float64{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, ds.AddBackground("bkg_norm", []float64{10, 10, 10}, 1.0, 0.1, 10.0))
	return ds
}

func TestExpectation_LinearInSignalStrength(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Params().SetValue("mu", 2))

	expected, err := ds.Expectation()
	require.NoError(t, err)
	require.Equal(t, []float64{12, 14, 16}, expected)
}

func TestExpectation_BackgroundNormScales(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Params().SetValue("mu", 0))
	require.NoError(t, ds.Params().SetValue("bkg_norm", 0.5))

	expected, err := ds.Expectation()
	require.NoError(t, err)
	require.Equal(t, []float64{5, 5, 5}, expected)
}

func TestNewBinned_RejectsInvalidTemplate(t *testing.T) {
	_, err := dataset.NewBinned("bad", []float64{1, -2, 3})
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidModel, errors.GetCode(err))

	_, err = dataset.NewBinned("bad", []float64{1, math.NaN()})
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidModel, errors.GetCode(err))

	_, err = dataset.NewBinned("bad", nil)
	require.Error(t, err)
}

func TestSetCounts_Validation(t *testing.T) {
	ds := newTestDataset(t)
	require.Error(t, ds.SetCounts([]float64{1, 2}))
	require.Error(t, ds.SetCounts([]float64{1, -2, 3}))
	require.NoError(t, ds.SetCounts([]float64{11, 12, 13}))
	require.Equal(t, []float64{11, 12, 13}, ds.Counts())
}

func TestClone_Independent(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetCounts([]float64{10, 12, 14}))

	cp := ds.Clone()
	require.NoError(t, cp.(*dataset.Binned).SetCounts([]float64{0, 0, 0}))
	require.NoError(t, cp.Params().SetValue("mu", 9))

	require.Equal(t, []float64{10, 12, 14}, ds.Counts(), "clone counts mutation leaked")
	mu, _ := ds.Params().Get("mu")
	require.Equal(t, 1.0, mu.Value, "clone parameter mutation leaked")
}

func TestFillAsimov_DeterministicAndLeavesParamsAlone(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.Params().SetValue("mu", 3)) // pre-fit leftovers must not matter
	before := ds.Params().Values()

	a := ds.Clone()
	b := ds.Clone()
	require.NoError(t, a.FillAsimov(2))
	require.NoError(t, b.FillAsimov(2))

	// Expectation at mu=2 with nominal bkg_norm=1.
	require.Equal(t, []float64{12, 14, 16}, a.Counts())
	require.Equal(t, a.Counts(), b.Counts(), "asimov fill must be bit-identical")
	require.Equal(t, before, ds.Params().Values())
	require.Equal(t, before, a.Params().Values(), "generation must not leave parameters mutated")
}

func TestFillPoisson_SeedReproducible(t *testing.T) {
	ds := newTestDataset(t)

	a := ds.Clone()
	b := ds.Clone()
	c := ds.Clone()
	require.NoError(t, a.FillPoisson(1, 42))
	require.NoError(t, b.FillPoisson(1, 42))
	require.NoError(t, c.FillPoisson(1, 43))

	require.Equal(t, a.Counts(), b.Counts(), "same seed must reproduce counts bit for bit")
	require.NotEqual(t, a.Counts(), c.Counts(), "different seed must change at least one bin")
}

func TestFillPoisson_MeanTracksExpectation(t *testing.T) {
	const nBins = 5000
	signal := make([]float64, nBins)
	background := make([]float64, nBins)
	for i := range signal {
		signal[i] = 2
		background[i] = 8
	}
	ds, err := dataset.NewBinned("poisson-mean", signal)
	require.NoError(t, err)
	require.NoError(t, ds.AddFixedBackground(background))

	require.NoError(t, ds.FillPoisson(1, 7))

	sum := 0.0
	for _, n := range ds.Counts() {
		require.GreaterOrEqual(t, n, 0.0)
		require.Equal(t, math.Round(n), n, "poisson draws must be integral")
		sum += n
	}
	mean := sum / nBins
	require.InDelta(t, 10.0, mean, 0.2, "sample mean should track the expectation")
}

func TestLogLikelihood_PeaksAtMatchingExpectation(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.FillAsimov(2))

	require.NoError(t, ds.Params().SetValue("mu", 2))
	atTruth, err := ds.LogLikelihood()
	require.NoError(t, err)

	require.NoError(t, ds.Params().SetValue("mu", 4))
	offTruth, err := ds.LogLikelihood()
	require.NoError(t, err)

	require.Greater(t, atTruth, offTruth)
}
