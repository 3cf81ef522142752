package significance

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/internal"
	"github.com/StFroese/titrate/internal/asimov"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/internal/teststat"
	"github.com/StFroese/titrate/ports"
)

var (
	stdNormal = distuv.Normal{Mu: 0, Sigma: 1}
	chiSq1    = distuv.ChiSquared{K: 1}
)

// PValueAsymptotic converts a test-statistic value into a p-value using
// the closed-form survival function for the given kind: a chi-square
// with one degree of freedom for q_mu, and the half-chi-square mixture
// (survival 1 - Phi(sqrt(q))) for the one-sided q0 and q~_mu.
func PValueAsymptotic(q float64, kind hypotest.Kind) float64 {
	if q < 0 {
		q = 0
	}
	switch kind {
	case hypotest.KindQMu:
		return chiSq1.Survival(q)
	default:
		return stdNormal.Survival(math.Sqrt(q))
	}
}

// PValueEmpirical is the tail fraction of distribution samples >= q,
// with an add-one guard so finite toy campaigns never report exactly 0.
func PValueEmpirical(q float64, dist *hypotest.Distribution) (float64, error) {
	return dist.TailFraction(q)
}

// ZValue converts a p-value into the one-sided Gaussian-equivalent
// significance: the z with standard-normal upper-tail probability p.
func ZValue(p float64) float64 {
	if p <= 0 {
		return math.Inf(1)
	}
	if p >= 1 {
		return math.Inf(-1)
	}
	return stdNormal.Quantile(1 - p)
}

// Calculator drives the evaluation loop: it feeds datasets through the
// test-statistic calculator and turns the values into significances and
// confidence-level bounds on the signal strength.
type Calculator struct {
	calc *teststat.Calculator
	cfg  config.LimitConfig
	log  *internal.Logger
}

// NewCalculator creates a significance/limit calculator.
func NewCalculator(calc *teststat.Calculator, cfg config.LimitConfig) *Calculator {
	return &Calculator{calc: calc, cfg: cfg, log: internal.DefaultLogger}
}

// DiscoverySignificance evaluates q0 on the dataset and returns the
// Gaussian-equivalent significance of rejecting the no-signal
// hypothesis.
func (c *Calculator) DiscoverySignificance(ctx context.Context, ds ports.Dataset) (float64, error) {
	q0, err := c.calc.Evaluate(ctx, ds, 0, hypotest.KindQ0)
	if err != nil {
		return 0, err
	}
	return ZValue(PValueAsymptotic(q0, hypotest.KindQ0)), nil
}

// ExpectedSignificance returns the median expected discovery
// significance for a true signal strength injectedMu, from a single
// deterministic Asimov evaluation.
func (c *Calculator) ExpectedSignificance(ctx context.Context, template ports.Dataset, injectedMu float64) (float64, error) {
	ds, err := asimov.Build(template, injectedMu)
	if err != nil {
		return 0, err
	}
	return c.DiscoverySignificance(ctx, ds)
}

// Limit finds the signal strength excluded at the given confidence
// level on this dataset: the mu where the asymptotic p-value of the
// test statistic crosses 1-confidenceLevel. The statistic is monotone
// non-decreasing in the distance of mu from the best fit, so the root
// is unique; it is bracketed by doubling and then bisected to the
// configured tolerance on mu.
func (c *Calculator) Limit(ctx context.Context, ds ports.Dataset, confidenceLevel float64, kind hypotest.Kind) (float64, error) {
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, errors.InvalidInput(fmt.Sprintf("confidence level must be in (0, 1), got %v", confidenceLevel))
	}
	if kind == hypotest.KindQ0 {
		return 0, errors.InvalidInput("q0 is a discovery statistic, not usable for limits")
	}
	alpha := 1 - confidenceLevel

	pAt := func(mu float64) (float64, error) {
		q, err := c.calc.Evaluate(ctx, ds, mu, kind)
		if err != nil {
			return 0, errors.Wrapf(err, "limit scan at mu=%v", mu)
		}
		return PValueAsymptotic(q, kind), nil
	}

	best, err := c.calc.BestFit(ctx, ds)
	if err != nil {
		return 0, errors.Wrap(err, "best fit for limit bracket")
	}
	lo := best.Params[ds.SignalParam()]
	if lo < 0 {
		lo = 0
	}
	pLo, err := pAt(lo)
	if err != nil {
		return 0, err
	}
	if pLo <= alpha {
		return 0, errors.NoRootFound(fmt.Sprintf(
			"p-value %.4g at best-fit mu=%v already below alpha=%.4g", pLo, lo, alpha))
	}

	hi := 2 * (lo + 1)
	for {
		pHi, err := pAt(hi)
		if err != nil {
			return 0, err
		}
		if pHi <= alpha {
			break
		}
		if hi >= c.cfg.MaxMu {
			return 0, errors.NoRootFound(fmt.Sprintf(
				"no p-value crossing of alpha=%.4g up to mu=%v (p=%.4g there)", alpha, hi, pHi))
		}
		lo = hi
		hi *= 2
	}

	for i := 0; i < c.cfg.MaxBisections && hi-lo > c.cfg.MuTolerance; i++ {
		mid := 0.5 * (lo + hi)
		pMid, err := pAt(mid)
		if err != nil {
			return 0, err
		}
		if pMid > alpha {
			lo = mid
		} else {
			hi = mid
		}
	}
	limit := 0.5 * (lo + hi)
	c.log.Debug("limit on %q: mu=%v at CL=%v (%s)", ds.Name(), limit, confidenceLevel, kind)
	return limit, nil
}

// ExpectedLimit is the median expected exclusion limit under the
// background-only hypothesis, from the true_mu=0 Asimov dataset.
func (c *Calculator) ExpectedLimit(ctx context.Context, template ports.Dataset, confidenceLevel float64, kind hypotest.Kind) (float64, error) {
	ds, err := asimov.Build(template, 0)
	if err != nil {
		return 0, err
	}
	return c.Limit(ctx, ds, confidenceLevel, kind)
}

// AsymptoticCheck compares one empirical quantile against its
// asymptotic prediction.
type AsymptoticCheck struct {
	Percent    float64 `json:"percent"`
	Empirical  float64 `json:"empirical"`
	Asymptotic float64 `json:"asymptotic"`
	Delta      float64 `json:"delta"`
}

// AsymptoticValidation summarizes how well a null-hypothesis toy
// distribution matches the asymptotic prediction.
type AsymptoticValidation struct {
	Kind      hypotest.Kind     `json:"kind"`
	N         int               `json:"n"`
	Tolerance float64           `json:"tolerance"`
	Checks    []AsymptoticCheck `json:"checks"`
	Valid     bool              `json:"valid"`
}

// ValidateAsymptotics checks a null-hypothesis toy distribution against
// the asymptotic quantiles of its kind at the 50th, 90th and 95th
// percentiles, within an absolute tolerance on the statistic.
func ValidateAsymptotics(dist *hypotest.Distribution, tolerance float64) (AsymptoticValidation, error) {
	if dist.Len() == 0 {
		return AsymptoticValidation{}, errors.InvalidInput("cannot validate an empty distribution")
	}
	out := AsymptoticValidation{
		Kind:      dist.Kind,
		N:         dist.Len(),
		Tolerance: tolerance,
		Valid:     true,
	}
	for _, percent := range []float64{50, 90, 95} {
		empirical, err := dist.Percentile(percent)
		if err != nil {
			return AsymptoticValidation{}, err
		}
		predicted := asymptoticNullQuantile(percent/100, dist.Kind)
		check := AsymptoticCheck{
			Percent:    percent,
			Empirical:  empirical,
			Asymptotic: predicted,
			Delta:      empirical - predicted,
		}
		if math.Abs(check.Delta) > tolerance {
			out.Valid = false
		}
		out.Checks = append(out.Checks, check)
	}
	return out, nil
}

// asymptoticNullQuantile is the p-quantile of the null-hypothesis
// sampling distribution: chi-square with one degree of freedom for
// q_mu, the half-mass-at-zero mixture for the one-sided statistics.
func asymptoticNullQuantile(p float64, kind hypotest.Kind) float64 {
	switch kind {
	case hypotest.KindQMu:
		return chiSq1.Quantile(p)
	default:
		if p <= 0.5 {
			return 0
		}
		return chiSq1.Quantile(2*p - 1)
	}
}
