package testkit

import (
	"math"

	"github.com/StFroese/titrate/adapters/dataset"
	"github.com/StFroese/titrate/adapters/optimizer"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/fit"
	"github.com/StFroese/titrate/internal/teststat"
)

// NewCountingExperiment builds a deterministic 20-bin counting
// experiment: a Gaussian-shaped signal template of ~30 expected counts
// at unit signal strength on top of a flat background of 50 counts per
// bin, scaled by a free nuisance norm.
func NewCountingExperiment() (*dataset.Binned, error) {
	const nBins = 20
	signal := make([]float64, nBins)
	for i := range signal {
		d := (float64(i) - 10.0) / 2.0
		signal[i] = 30.0 * math.Exp(-0.5*d*d) / (2.0 * math.Sqrt(2.0*math.Pi))
	}

	ds, err := dataset.NewBinned("counting-experiment", signal)
	if err != nil {
		return nil, err
	}

	background := make([]float64, nBins)
	for i := range background {
		background[i] = 50.0
	}
	if err := ds.AddBackground("bkg_norm", background, 1.0, 0.1, 10.0); err != nil {
		return nil, err
	}
	return ds, nil
}

// MustCountingExperiment is NewCountingExperiment for tests.
func MustCountingExperiment() *dataset.Binned {
	ds, err := NewCountingExperiment()
	if err != nil {
		panic(err)
	}
	return ds
}

// NewSimpleCounting builds a dataset with a flat signal template of
// signalPerBin counts and a fixed (no nuisance) flat background of
// bkgPerBin counts per bin. With only the signal strength free, fits
// are fast enough for large toy campaigns in tests.
func NewSimpleCounting(nBins int, signalPerBin, bkgPerBin float64) (*dataset.Binned, error) {
	signal := make([]float64, nBins)
	background := make([]float64, nBins)
	for i := 0; i < nBins; i++ {
		signal[i] = signalPerBin
		background[i] = bkgPerBin
	}
	ds, err := dataset.NewBinned("simple-counting", signal)
	if err != nil {
		return nil, err
	}
	if err := ds.AddFixedBackground(background); err != nil {
		return nil, err
	}
	return ds, nil
}

// MustSimpleCounting is NewSimpleCounting for tests.
func MustSimpleCounting(nBins int, signalPerBin, bkgPerBin float64) *dataset.Binned {
	ds, err := NewSimpleCounting(nBins, signalPerBin, bkgPerBin)
	if err != nil {
		panic(err)
	}
	return ds
}

// NewCalculator wires a test-statistic calculator with the default
// Nelder-Mead optimizer and fit configuration.
func NewCalculator() *teststat.Calculator {
	cfg := config.Default()
	opt := optimizer.New(cfg.Fit.Tolerance, cfg.Fit.MaxEvaluations)
	return teststat.NewCalculator(fit.NewEngine(opt, cfg.Fit))
}
