package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/StFroese/titrate/adapters/optimizer"
	"github.com/StFroese/titrate/domain/hypotest"
	"github.com/StFroese/titrate/internal/config"
	"github.com/StFroese/titrate/internal/fit"
	"github.com/StFroese/titrate/internal/significance"
	"github.com/StFroese/titrate/internal/testkit"
	"github.com/StFroese/titrate/internal/teststat"
	"github.com/StFroese/titrate/internal/toys"
)

// Demo harness: runs the sensitivity workflow on the built-in counting
// experiment so the engine can be exercised end to end from a shell.
func main() {
	_ = godotenv.Load()

	injected := flag.Float64("inject", 5.0, "true signal strength for the expected-significance scan")
	cl := flag.Float64("cl", 0.95, "confidence level for the expected exclusion limit")
	nToys := flag.Int("toys", 0, "optional q0 toy campaign size for the asymptotic calibration check")
	seed := flag.Uint64("seed", 42, "base seed for the toy campaign")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	template, err := testkit.NewCountingExperiment()
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}

	opt := optimizer.New(cfg.Fit.Tolerance, cfg.Fit.MaxEvaluations)
	calc := teststat.NewCalculator(fit.NewEngine(opt, cfg.Fit))
	sig := significance.NewCalculator(calc, cfg.Limit)
	ctx := context.Background()

	z, err := sig.ExpectedSignificance(ctx, template, *injected)
	if err != nil {
		log.Fatalf("expected significance: %v", err)
	}
	fmt.Printf("expected discovery significance at mu=%.2f: %.3f sigma\n", *injected, z)

	limit, err := sig.ExpectedLimit(ctx, template, *cl, hypotest.KindQTildeMu)
	if err != nil {
		log.Fatalf("expected limit: %v", err)
	}
	fmt.Printf("expected exclusion limit at %.0f%% CL: mu < %.3f\n", 100**cl, limit)

	if *nToys > 0 {
		sampler := toys.NewSampler(calc, cfg.Toys)
		result, err := sampler.Sample(ctx, template, toys.Request{
			TrueMu:       0,
			HypothesisMu: 0,
			Kind:         hypotest.KindQ0,
			NToys:        *nToys,
			BaseSeed:     *seed,
		})
		if err != nil {
			log.Fatalf("toy campaign: %v", err)
		}

		summary, err := result.Distribution.Summarize()
		if err != nil {
			log.Fatalf("summarize: %v", err)
		}
		fmt.Printf("q0 toys (n=%d, %d excluded): median=%.3f p95=%.3f p99=%.3f\n",
			summary.N, result.Manifest.Failed, summary.Median, summary.Percentile95, summary.Percentile99)

		validation, err := significance.ValidateAsymptotics(result.Distribution, 0.5)
		if err != nil {
			log.Fatalf("validate: %v", err)
		}
		for _, check := range validation.Checks {
			fmt.Printf("  q0 p%.0f: empirical=%.3f asymptotic=%.3f\n",
				check.Percent, check.Empirical, check.Asymptotic)
		}
		fmt.Printf("asymptotic approximation valid: %v\n", validation.Valid)
	}
}
