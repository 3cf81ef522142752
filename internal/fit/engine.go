package fit

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/rand"

	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/domain/model"
	"github.com/StFroese/titrate/internal"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/ports"
)

// Engine maximizes the Poisson log-likelihood of a dataset over its
// free parameters through a pluggable bounded optimizer. One Fit call
// borrows the dataset for the duration of the optimization and leaves
// its parameters at the best fit, or restored on failure.
type Engine struct {
	opt ports.Optimizer
	cfg config.FitConfig
	log *internal.Logger
}

// NewEngine creates a fit engine.
func NewEngine(opt ports.Optimizer, cfg config.FitConfig) *Engine {
	return &Engine{opt: opt, cfg: cfg, log: internal.DefaultLogger}
}

// Fit maximizes the log-likelihood over all free parameters. Under a
// constrained hypothesis (FixedMu set) the signal-strength parameter is
// held at the hypothesized value and excluded from the optimization;
// nuisance parameters are always optimized. A non-converged fit
// restores the original parameter values and returns a FIT_CONVERGENCE
// error alongside the unconverged result.
func (e *Engine) Fit(ctx context.Context, ds ports.Dataset, hyp hypotest.Hypothesis) (hypotest.FitResult, error) {
	params := ds.Params()
	original := params.Values()

	sigName := ds.SignalParam()
	if _, ok := params.Get(sigName); !ok {
		return hypotest.FitResult{}, errors.InvalidInput(fmt.Sprintf("dataset %q has no signal parameter %q", ds.Name(), sigName))
	}
	if hyp.FixedMu {
		if err := params.SetValue(sigName, hyp.Mu); err != nil {
			return hypotest.FitResult{}, errors.Wrap(err, "set hypothesis signal strength")
		}
	}

	var free []*model.Parameter
	for _, p := range params.Free() {
		if hyp.FixedMu && p.Name == sigName {
			continue
		}
		free = append(free, p)
	}

	var evalErr error
	objective := func(x []float64) float64 {
		for i, p := range free {
			p.Value = x[i]
		}
		ll, err := ds.LogLikelihood()
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return -ll
	}

	if len(free) == 0 {
		ll, err := ds.LogLikelihood()
		if err != nil {
			params.Restore(original)
			return hypotest.FitResult{}, err
		}
		return hypotest.FitResult{
			Params:        params.Values(),
			LogLikelihood: ll,
			Converged:     true,
		}, nil
	}

	x0 := make([]float64, len(free))
	lower := make([]float64, len(free))
	upper := make([]float64, len(free))
	for i, p := range free {
		x0[i] = p.Value
		lower[i] = p.Min
		upper[i] = p.Max
	}

	// Restart perturbations come from a fit-local stream, so concurrent
	// fits stay independent and a given fit is reproducible.
	rng := rand.New(rand.NewSource(e.cfg.RestartSeed))

	attempts := e.cfg.MaxRestarts + 1
	totalEvals := 0
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := e.opt.Minimize(ctx, objective, x0, lower, upper)
		if err != nil {
			params.Restore(original)
			if evalErr != nil {
				return hypotest.FitResult{}, evalErr
			}
			return hypotest.FitResult{}, err
		}
		totalEvals += result.FuncEvaluations

		if result.Converged {
			inBounds := true
			for i, p := range free {
				p.Value = result.X[i]
				if !p.InBounds() {
					inBounds = false
				}
			}
			if inBounds {
				return hypotest.FitResult{
					Params:          params.Values(),
					LogLikelihood:   -result.F,
					Converged:       true,
					FuncEvaluations: totalEvals,
					Restarts:        attempt,
				}, nil
			}
			e.log.Debug("fit on %q attempt %d/%d converged outside the bounds, perturbing starting values", ds.Name(), attempt+1, attempts)
		} else {
			e.log.Debug("fit on %q attempt %d/%d did not converge, perturbing starting values", ds.Name(), attempt+1, attempts)
		}
		x0 = perturbStart(rng, result.X, lower, upper, e.cfg.RestartJitter)
	}

	params.Restore(original)
	unconverged := hypotest.FitResult{
		Params:          original,
		Converged:       false,
		FuncEvaluations: totalEvals,
		Restarts:        attempts - 1,
	}
	return unconverged, errors.FitConvergence(fmt.Sprintf(
		"fit on %q did not converge after %d attempts (%s)", ds.Name(), attempts, describeParams(params, original)))
}

// describeParams renders a value snapshot in declaration order, so the
// same failure always reads the same way in logs and errors.
func describeParams(params *model.ParameterSet, snapshot map[string]float64) string {
	parts := make([]string, 0, len(snapshot))
	for _, name := range params.Names() {
		parts = append(parts, fmt.Sprintf("%s=%v", name, snapshot[name]))
	}
	return strings.Join(parts, ", ")
}

// perturbStart jitters a starting vector inside the bounds.
func perturbStart(rng *rand.Rand, x, lower, upper []float64, jitter float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		scale := math.Abs(v)
		if scale == 0 {
			span := upper[i] - lower[i]
			if math.IsInf(span, 0) || span > 1 {
				span = 1
			}
			scale = span
		}
		p := v + jitter*scale*(2*rng.Float64()-1)
		if p < lower[i] {
			p = lower[i]
		}
		if p > upper[i] {
			p = upper[i]
		}
		out[i] = p
	}
	return out
}
