package toys

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/internal"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/internal/teststat"
	"github.com/StFroese/titrate/ports"
)

// Request describes one toy campaign.
type Request struct {
	TrueMu       float64       // signal strength the pseudo-data is generated with
	HypothesisMu float64       // signal strength the test statistic is evaluated at
	Kind         hypotest.Kind // test-statistic construction
	NToys        int
	BaseSeed     uint64
}

// Result is a toy campaign's distribution plus its audit manifest.
type Result struct {
	Distribution *hypotest.Distribution
	Manifest     hypotest.CampaignManifest
}

// Sampler builds empirical test-statistic distributions from Poisson
// pseudo-experiments. Each toy is an independent unit of work (clone,
// fill, fit twice, record); the template is read-only once sampling
// begins, so toys run on a bounded worker pool without changing the
// result.
type Sampler struct {
	calc *teststat.Calculator
	cfg  config.ToyConfig
	log  *internal.Logger
}

// NewSampler creates a toy sampler.
func NewSampler(calc *teststat.Calculator, cfg config.ToyConfig) *Sampler {
	return &Sampler{calc: calc, cfg: cfg, log: internal.DefaultLogger}
}

const (
	toyPending = iota // never scheduled (cancellation)
	toyOK
	toyFailed // excluded for fit non-convergence
)

type toyOutcome struct {
	state int
	value float64
}

// Sample runs the campaign. The same base seed and toy count reproduce
// the distribution bit for bit. Individual fit-convergence failures are
// excluded and counted rather than propagated; if the excluded fraction
// exceeds the configured threshold the campaign fails with CALIBRATION
// instead of returning a biased distribution. Cancelling the context
// stops scheduling between toys and returns the partial distribution
// with the manifest marked cancelled.
func (s *Sampler) Sample(ctx context.Context, template ports.Dataset, req Request) (*Result, error) {
	if req.NToys <= 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("toy count must be > 0, got %d", req.NToys))
	}
	if !req.Kind.Valid() {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown test statistic kind %q", req.Kind))
	}
	if req.Kind == hypotest.KindQ0 && req.HypothesisMu != 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("q0 campaigns evaluate at mu=0, got %v", req.HypothesisMu))
	}

	manifest := hypotest.NewCampaignManifest(req.Kind, req.TrueMu, req.HypothesisMu, req.BaseSeed, req.NToys)
	s.log.Info("toy campaign %s: %d toys, true mu=%v, hypothesis mu=%v, kind=%s",
		manifest.CampaignID, req.NToys, req.TrueMu, req.HypothesisMu, req.Kind)
	start := time.Now()

	outcomes := make([]toyOutcome, req.NToys)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < req.NToys; i++ {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			seed := DeriveSeed(req.BaseSeed, i)
			toy := template.Clone()
			if err := toy.FillPoisson(req.TrueMu, seed); err != nil {
				// Model errors are deterministic, every toy would hit
				// them; abort instead of counting failures.
				return errors.Wrapf(err, "toy %d (seed %d)", i, seed)
			}
			q, err := s.calc.Evaluate(gctx, toy, req.HypothesisMu, req.Kind)
			if err != nil {
				if errors.IsCode(err, errors.CodeFitConvergence) && gctx.Err() == nil {
					s.log.Debug("toy %d (seed %d) excluded: %v", i, seed, err)
					outcomes[i] = toyOutcome{state: toyFailed}
					return nil
				}
				return errors.Wrapf(err, "toy %d (seed %d)", i, seed)
			}
			outcomes[i] = toyOutcome{state: toyOK, value: q}
			return nil
		})
	}
	waitErr := g.Wait()
	cancelled := ctx.Err() != nil
	if waitErr != nil && !cancelled {
		return nil, waitErr
	}

	dist, err := hypotest.NewDistribution(req.Kind, req.HypothesisMu, req.TrueMu)
	if err != nil {
		return nil, err
	}
	for i, out := range outcomes {
		switch out.state {
		case toyOK:
			dist.Append(hypotest.TestStatisticSample{
				Value:        out.value,
				HypothesisMu: req.HypothesisMu,
				TrueMu:       req.TrueMu,
				Seed:         DeriveSeed(req.BaseSeed, i),
				ToyIndex:     i,
			})
			manifest.Completed++
		case toyFailed:
			manifest.Completed++
			manifest.Failed++
		}
	}
	manifest.Cancelled = cancelled
	manifest.RuntimeMs = time.Since(start).Milliseconds()

	if !cancelled {
		if frac := manifest.FailureFraction(); frac > s.cfg.MaxFailureFraction {
			return nil, errors.Calibration(fmt.Sprintf(
				"campaign %s excluded %d of %d toys (%.1f%% > %.1f%% allowed)",
				manifest.CampaignID, manifest.Failed, manifest.Completed,
				100*frac, 100*s.cfg.MaxFailureFraction))
		}
	}

	s.log.Info("toy campaign %s finished: %d/%d toys, %d excluded, cancelled=%v, %d ms",
		manifest.CampaignID, manifest.Completed, manifest.Requested, manifest.Failed,
		manifest.Cancelled, manifest.RuntimeMs)

	return &Result{Distribution: dist, Manifest: manifest}, nil
}

// DeriveSeed maps (base seed, toy index) to the per-toy seed through a
// splitmix64 step, so neighbouring toy indices get well separated
// generator states.
func DeriveSeed(base uint64, index int) uint64 {
	z := base + (uint64(index)+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
