package hypotest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
)

// Hypothesis is a hypothesized signal strength and whether the
// corresponding parameter is held fixed during the constrained fit.
type Hypothesis struct {
	Mu      float64 `json:"mu"`
	FixedMu bool    `json:"fixed_mu"`
}

// FitResult is the outcome of one likelihood maximization.
// It is created once per fit and never mutated afterwards.
type FitResult struct {
	Params          map[string]float64 `json:"params"`          // best-fit values, all parameters
	LogLikelihood   float64            `json:"log_likelihood"`  // attained ln L
	Converged       bool               `json:"converged"`       // optimizer convergence flag
	FuncEvaluations int                `json:"func_evaluations"`
	Restarts        int                `json:"restarts"` // perturbed restarts consumed
}

// TestStatisticSample is one test-statistic evaluation. TrueMu and Seed
// are only meaningful for toy-generated samples.
type TestStatisticSample struct {
	Value        float64 `json:"value"`
	HypothesisMu float64 `json:"hypothesis_mu"`
	TrueMu       float64 `json:"true_mu"`
	Seed         uint64  `json:"seed,omitempty"`
	ToyIndex     int     `json:"toy_index"`
}

// Distribution is an ordered collection of test-statistic samples
// sharing the same hypothesis mu and true mu. Append-only while a toy
// campaign runs, read-only afterwards; samples are kept in toy-index
// order for reproducible reporting.
type Distribution struct {
	Kind         Kind    `json:"kind"`
	HypothesisMu float64 `json:"hypothesis_mu"`
	TrueMu       float64 `json:"true_mu"`

	samples []TestStatisticSample
}

// NewDistribution creates an empty distribution with validation.
func NewDistribution(kind Kind, hypothesisMu, trueMu float64) (*Distribution, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown test statistic kind %q", kind)
	}
	if math.IsNaN(hypothesisMu) || math.IsNaN(trueMu) {
		return nil, fmt.Errorf("hypothesis/true mu must be finite, got %v / %v", hypothesisMu, trueMu)
	}
	return &Distribution{Kind: kind, HypothesisMu: hypothesisMu, TrueMu: trueMu}, nil
}

// Append adds a sample. Samples must be appended in toy-index order.
func (d *Distribution) Append(s TestStatisticSample) {
	d.samples = append(d.samples, s)
}

// Len returns the number of collected samples.
func (d *Distribution) Len() int { return len(d.samples) }

// Samples returns a copy of the stored samples in toy-index order.
func (d *Distribution) Samples() []TestStatisticSample {
	out := make([]TestStatisticSample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Values returns the test-statistic values in toy-index order.
func (d *Distribution) Values() []float64 {
	out := make([]float64, len(d.samples))
	for i, s := range d.samples {
		out[i] = s.Value
	}
	return out
}

// Percentile returns the empirical percentile (0-100) of the values.
func (d *Distribution) Percentile(percent float64) (float64, error) {
	if len(d.samples) == 0 {
		return 0, fmt.Errorf("percentile of empty distribution")
	}
	return stats.Percentile(d.Values(), percent)
}

// Median returns the empirical median of the values.
func (d *Distribution) Median() (float64, error) {
	if len(d.samples) == 0 {
		return 0, fmt.Errorf("median of empty distribution")
	}
	return stats.Median(d.Values())
}

// TailFraction returns the fraction of samples >= q with an add-one
// guard, so a toy-based p-value is never exactly zero.
func (d *Distribution) TailFraction(q float64) (float64, error) {
	if len(d.samples) == 0 {
		return 0, fmt.Errorf("tail fraction of empty distribution")
	}
	tail := 0
	for _, s := range d.samples {
		if s.Value >= q {
			tail++
		}
	}
	return float64(tail+1) / float64(len(d.samples)+1), nil
}

// DistributionSummary condenses a distribution for reporting without
// shipping every sample.
type DistributionSummary struct {
	N            int     `json:"n"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Median       float64 `json:"median"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
}

// Summarize computes the summary statistics of the distribution.
func (d *Distribution) Summarize() (DistributionSummary, error) {
	if len(d.samples) == 0 {
		return DistributionSummary{}, fmt.Errorf("summary of empty distribution")
	}
	values := d.Values()

	summary := DistributionSummary{N: len(values)}
	var err error
	if summary.Mean, err = stats.Mean(values); err != nil {
		return DistributionSummary{}, err
	}
	if summary.StdDev, err = stats.StandardDeviation(values); err != nil {
		return DistributionSummary{}, err
	}
	if summary.Min, err = stats.Min(values); err != nil {
		return DistributionSummary{}, err
	}
	if summary.Max, err = stats.Max(values); err != nil {
		return DistributionSummary{}, err
	}
	if summary.Median, err = stats.Median(values); err != nil {
		return DistributionSummary{}, err
	}
	if summary.Percentile95, err = stats.Percentile(values, 95); err != nil {
		return DistributionSummary{}, err
	}
	if summary.Percentile99, err = stats.Percentile(values, 99); err != nil {
		return DistributionSummary{}, err
	}
	return summary, nil
}

// CampaignManifest is the audit trail of one toy campaign.
type CampaignManifest struct {
	CampaignID   string    `json:"campaign_id"`
	Kind         Kind      `json:"kind"`
	TrueMu       float64   `json:"true_mu"`
	HypothesisMu float64   `json:"hypothesis_mu"`
	BaseSeed     uint64    `json:"base_seed"`
	Requested    int       `json:"requested"`
	Completed    int       `json:"completed"` // toys attempted (converged + failed)
	Failed       int       `json:"failed"`    // toys excluded for non-convergence
	Cancelled    bool      `json:"cancelled"`
	RuntimeMs    int64     `json:"runtime_ms"`
	StartedAt    time.Time `json:"started_at"`
}

// NewCampaignManifest stamps a fresh manifest for a toy campaign.
func NewCampaignManifest(kind Kind, trueMu, hypothesisMu float64, baseSeed uint64, requested int) CampaignManifest {
	return CampaignManifest{
		CampaignID:   uuid.NewString(),
		Kind:         kind,
		TrueMu:       trueMu,
		HypothesisMu: hypothesisMu,
		BaseSeed:     baseSeed,
		Requested:    requested,
		StartedAt:    time.Now().UTC(),
	}
}

// FailureFraction returns the excluded fraction among attempted toys.
func (m CampaignManifest) FailureFraction() float64 {
	if m.Completed == 0 {
		return 0
	}
	return float64(m.Failed) / float64(m.Completed)
}
