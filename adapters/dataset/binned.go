package dataset

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/StFroese/titrate/domain/model"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/ports"
)

// expectationFloor keeps the Poisson log finite in empty model bins.
const expectationFloor = 1e-25

// SignalParamName is the conventional name of the signal-strength
// parameter in datasets built by this adapter.
const SignalParamName = "mu"

type component struct {
	param    string
	template []float64
}

// Binned is a binned Poisson counting dataset: observed counts per bin
// plus a linear expectation model of a signal template scaled by the
// signal strength and background templates scaled by nuisance norms.
// It satisfies ports.Dataset.
type Binned struct {
	name        string
	counts      []float64
	params      *model.ParameterSet
	signal      []float64
	backgrounds []component
}

var _ ports.Dataset = (*Binned)(nil)

// NewBinned creates a dataset from a signal template (expected counts
// per bin at unit signal strength). The signal-strength parameter is
// declared non-negative; counts start at zero.
func NewBinned(name string, signalTemplate []float64) (*Binned, error) {
	if name == "" {
		return nil, errors.InvalidInput("dataset name must be set")
	}
	if len(signalTemplate) == 0 {
		return nil, errors.InvalidInput("signal template must have at least one bin")
	}
	if err := validateTemplate(signalTemplate); err != nil {
		return nil, err
	}

	params := model.NewParameterSet()
	if err := params.Add(SignalParamName, 1.0, 0.0, 1e4, false); err != nil {
		return nil, errors.Wrap(err, "declare signal strength")
	}

	b := &Binned{
		name:   name,
		counts: make([]float64, len(signalTemplate)),
		params: params,
		signal: append([]float64(nil), signalTemplate...),
	}
	return b, nil
}

// AddBackground adds a background template scaled by a free nuisance
// norm parameter with the given nominal value and bounds.
func (b *Binned) AddBackground(param string, template []float64, nominal, min, max float64) error {
	if len(template) != len(b.signal) {
		return errors.InvalidInput(fmt.Sprintf("background %q has %d bins, dataset has %d", param, len(template), len(b.signal)))
	}
	if err := validateTemplate(template); err != nil {
		return err
	}
	if err := b.params.Add(param, nominal, min, max, false); err != nil {
		return errors.Wrap(err, "declare background norm")
	}
	b.backgrounds = append(b.backgrounds, component{
		param:    param,
		template: append([]float64(nil), template...),
	})
	return nil
}

// AddFixedBackground adds a background template that is not scaled by
// any fit parameter.
func (b *Binned) AddFixedBackground(template []float64) error {
	if len(template) != len(b.signal) {
		return errors.InvalidInput(fmt.Sprintf("background has %d bins, dataset has %d", len(template), len(b.signal)))
	}
	if err := validateTemplate(template); err != nil {
		return err
	}
	b.backgrounds = append(b.backgrounds, component{
		template: append([]float64(nil), template...),
	})
	return nil
}

// SetCounts overwrites the observed counts.
func (b *Binned) SetCounts(counts []float64) error {
	if len(counts) != len(b.counts) {
		return errors.InvalidInput(fmt.Sprintf("counts have %d bins, dataset has %d", len(counts), len(b.counts)))
	}
	for i, n := range counts {
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return errors.InvalidInput(fmt.Sprintf("bin %d has invalid count %v", i, n))
		}
	}
	copy(b.counts, counts)
	return nil
}

// Name identifies the dataset.
func (b *Binned) Name() string { return b.name }

// Counts returns the dataset's own counts buffer.
func (b *Binned) Counts() []float64 { return b.counts }

// Params exposes the model parameters.
func (b *Binned) Params() *model.ParameterSet { return b.params }

// SignalParam names the signal-strength parameter.
func (b *Binned) SignalParam() string { return SignalParamName }

// Expectation evaluates the expected counts per bin at the current
// parameter values.
func (b *Binned) Expectation() ([]float64, error) {
	mu, _ := b.params.Get(SignalParamName)
	expected := make([]float64, len(b.signal))
	for i, s := range b.signal {
		expected[i] = mu.Value * s
	}
	for _, bkg := range b.backgrounds {
		scale := 1.0
		if bkg.param != "" {
			norm, _ := b.params.Get(bkg.param)
			scale = norm.Value
		}
		for i, t := range bkg.template {
			expected[i] += scale * t
		}
	}
	for i, lambda := range expected {
		if lambda < 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
			return nil, errors.InvalidModel(fmt.Sprintf(
				"dataset %q bin %d has expectation %v at params %v", b.name, i, lambda, b.params.Values()))
		}
	}
	return expected, nil
}

// LogLikelihood evaluates the Poisson log-likelihood of the observed
// counts against the expectation at the current parameter values.
func (b *Binned) LogLikelihood() (float64, error) {
	expected, err := b.Expectation()
	if err != nil {
		return 0, err
	}
	ll := 0.0
	for i, lambda := range expected {
		n := b.counts[i]
		if lambda < expectationFloor {
			lambda = expectationFloor
		}
		lg, _ := math.Lgamma(n + 1)
		ll += n*math.Log(lambda) - lambda - lg
	}
	return ll, nil
}

// Clone deep-copies the dataset.
func (b *Binned) Clone() ports.Dataset {
	cp := &Binned{
		name:   b.name,
		counts: append([]float64(nil), b.counts...),
		params: b.params.Clone(),
		signal: append([]float64(nil), b.signal...),
	}
	for _, bkg := range b.backgrounds {
		cp.backgrounds = append(cp.backgrounds, component{
			param:    bkg.param,
			template: append([]float64(nil), bkg.template...),
		})
	}
	return cp
}

// FillAsimov sets counts to the expectation at signal strength trueMu
// with all other parameters at nominal. Deterministic.
func (b *Binned) FillAsimov(trueMu float64) error {
	expected, err := b.expectationAt(trueMu)
	if err != nil {
		return err
	}
	copy(b.counts, expected)
	return nil
}

// FillPoisson sets counts to a Poisson draw per bin with mean from the
// expectation at trueMu, reproducible through the seed.
func (b *Binned) FillPoisson(trueMu float64, seed uint64) error {
	expected, err := b.expectationAt(trueMu)
	if err != nil {
		return err
	}
	src := rand.NewSource(seed)
	for i, lambda := range expected {
		if lambda <= 0 {
			b.counts[i] = 0
			continue
		}
		b.counts[i] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
	}
	return nil
}

// expectationAt evaluates the expectation at (trueMu, nominal nuisance
// values) without leaving the parameter state mutated.
func (b *Binned) expectationAt(trueMu float64) ([]float64, error) {
	snapshot := b.params.Values()
	defer b.params.Restore(snapshot)

	b.params.ResetToNominal()
	if err := b.params.SetValue(SignalParamName, trueMu); err != nil {
		return nil, errors.Wrap(err, "set true signal strength")
	}
	return b.Expectation()
}

func validateTemplate(template []float64) error {
	for i, v := range template {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidModel(fmt.Sprintf("template bin %d has invalid value %v", i, v))
		}
	}
	return nil
}
