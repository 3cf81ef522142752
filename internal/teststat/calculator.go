package teststat

import (
	"context"
	"fmt"
	"math"

	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/internal/fit"
	"github.com/StFroese/titrate/ports"
)

// Calculator turns a dataset and a hypothesized signal strength into a
// profile-likelihood test statistic. It always works on a clone, so the
// caller's dataset is never left mid-fit.
type Calculator struct {
	fits *fit.Engine
}

// NewCalculator creates a test-statistic calculator on top of a fit
// engine.
func NewCalculator(fits *fit.Engine) *Calculator {
	return &Calculator{fits: fits}
}

// Evaluate computes the test statistic of the given kind at hypothesis
// mu. The result is >= 0 by construction and exactly 0 when the
// constrained and unconstrained fits coincide. A fit that fails to
// converge surfaces as an error; it never feeds a significance number.
func (c *Calculator) Evaluate(ctx context.Context, ds ports.Dataset, mu float64, kind hypotest.Kind) (float64, error) {
	if !kind.Valid() {
		return 0, errors.InvalidInput(fmt.Sprintf("unknown test statistic kind %q", kind))
	}
	if kind == hypotest.KindQ0 && mu != 0 {
		return 0, errors.InvalidInput(fmt.Sprintf("q0 is defined at mu=0, got mu=%v", mu))
	}

	work := ds.Clone()

	constrained, err := c.fits.Fit(ctx, work, hypotest.Hypothesis{Mu: mu, FixedMu: true})
	if err != nil {
		return 0, errors.Wrapf(err, "constrained fit at mu=%v on %q", mu, ds.Name())
	}

	global, err := c.fits.Fit(ctx, work, hypotest.Hypothesis{})
	if err != nil {
		return 0, errors.Wrapf(err, "unconstrained fit on %q", ds.Name())
	}
	muHat := global.Params[work.SignalParam()]
	llHat := global.LogLikelihood

	switch kind {
	case hypotest.KindQ0:
		// A non-positive best-fit signal is not evidence for discovery.
		if muHat <= 0 {
			return 0, nil
		}
	case hypotest.KindQMu:
		if muHat < 0 {
			if llHat, err = c.profileAtZero(ctx, work); err != nil {
				return 0, err
			}
		}
	case hypotest.KindQTildeMu:
		// Upward fluctuations beyond the hypothesis carry no exclusion
		// power for a bounded signal.
		if muHat > mu {
			return 0, nil
		}
		if muHat < 0 {
			if llHat, err = c.profileAtZero(ctx, work); err != nil {
				return 0, err
			}
		}
	}

	q := -2 * (constrained.LogLikelihood - llHat)
	if q < 0 {
		// The two fits coincide up to optimizer noise.
		q = 0
	}
	return q, nil
}

// BestFit runs the unconstrained fit on a clone and returns the result,
// leaving the caller's dataset untouched.
func (c *Calculator) BestFit(ctx context.Context, ds ports.Dataset) (hypotest.FitResult, error) {
	return c.fits.Fit(ctx, ds.Clone(), hypotest.Hypothesis{})
}

// profileAtZero re-runs the constrained fit with the signal strength
// fixed at zero, the bounded-parameter floor for a negative best fit.
func (c *Calculator) profileAtZero(ctx context.Context, ds ports.Dataset) (float64, error) {
	floored, err := c.fits.Fit(ctx, ds, hypotest.Hypothesis{Mu: 0, FixedMu: true})
	if err != nil {
		return 0, errors.Wrap(err, "floored fit at mu=0")
	}
	if math.IsNaN(floored.LogLikelihood) {
		return 0, errors.InvalidModel(fmt.Sprintf("floored fit on %q produced NaN log-likelihood", ds.Name()))
	}
	return floored.LogLikelihood, nil
}
