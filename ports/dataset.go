package ports

import (
	"github.com/StFroese/titrate/domain/model"
)

// Dataset is the narrow capability interface the statistical core needs
// from a binned counting experiment. Any concrete counts+model
// representation can satisfy it; the core never sees bins, geometry or
// instrument response directly.
type Dataset interface {
	// Name identifies the dataset in logs and error messages.
	Name() string

	// Counts returns the observed (or generated) counts per bin.
	// The returned slice is the dataset's own buffer and must not be
	// mutated by callers.
	Counts() []float64

	// Params exposes the model parameters (named, bounded, free/fixed).
	// The fit engine mutates values through this set during
	// optimization.
	Params() *model.ParameterSet

	// SignalParam names the signal-strength parameter within Params.
	SignalParam() string

	// Expectation evaluates the expected counts per bin at the current
	// parameter values. Fails when any expectation is negative or
	// non-finite.
	Expectation() ([]float64, error)

	// LogLikelihood evaluates the Poisson log-likelihood of the
	// observed counts against the expectation at the current parameter
	// values.
	LogLikelihood() (float64, error)

	// Clone deep-copies the dataset: independent counts buffer and
	// parameter state.
	Clone() Dataset

	// FillAsimov overwrites the counts with the expectation evaluated
	// at signal strength trueMu and all other parameters at nominal.
	// Deterministic; parameter values are left untouched.
	FillAsimov(trueMu float64) error

	// FillPoisson overwrites the counts with an independent Poisson
	// draw per bin, mean taken from the expectation at trueMu and
	// nominal nuisance values. The same seed reproduces the same
	// counts bit for bit.
	FillPoisson(trueMu float64, seed uint64) error
}
