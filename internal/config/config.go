package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/StFroese/titrate/internal/errors"
)

// Config represents the complete engine configuration
type Config struct {
	Fit   FitConfig
	Toys  ToyConfig
	Limit LimitConfig
}

// FitConfig holds numerical optimization settings
type FitConfig struct {
	Tolerance      float64 // absolute function-convergence tolerance
	MaxEvaluations int     // objective evaluation budget per attempt
	MaxRestarts    int     // perturbed restarts after a non-converged attempt
	RestartJitter  float64 // relative jitter applied to starting values on restart
	RestartSeed    uint64  // seed for the restart perturbation stream
}

// ToyConfig holds toy-campaign settings
type ToyConfig struct {
	Workers            int     // bounded worker pool size
	MaxFailureFraction float64 // above this excluded fraction the campaign fails
}

// LimitConfig holds limit-search settings
type LimitConfig struct {
	MuTolerance   float64 // bisection stops once the bracket is this narrow
	MaxMu         float64 // bracket expansion gives up beyond this mu
	MaxBisections int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Fit: FitConfig{
			Tolerance:      1e-6,
			MaxEvaluations: 10000,
			MaxRestarts:    2,
			RestartJitter:  0.1,
			RestartSeed:    1,
		},
		Toys: ToyConfig{
			Workers:            runtime.NumCPU(),
			MaxFailureFraction: 0.05,
		},
		Limit: LimitConfig{
			MuTolerance:   1e-3,
			MaxMu:         1e6,
			MaxBisections: 200,
		},
	}
}

// Load reads the configuration from TITRATE_* environment variables,
// falling back to defaults for anything unset.
func Load() (*Config, error) {
	cfg := Default()

	if err := overrideFloat("TITRATE_FIT_TOLERANCE", &cfg.Fit.Tolerance); err != nil {
		return nil, err
	}
	if err := overrideInt("TITRATE_FIT_MAX_EVALS", &cfg.Fit.MaxEvaluations); err != nil {
		return nil, err
	}
	if err := overrideInt("TITRATE_FIT_MAX_RESTARTS", &cfg.Fit.MaxRestarts); err != nil {
		return nil, err
	}
	if err := overrideFloat("TITRATE_FIT_RESTART_JITTER", &cfg.Fit.RestartJitter); err != nil {
		return nil, err
	}
	if err := overrideInt("TITRATE_TOY_WORKERS", &cfg.Toys.Workers); err != nil {
		return nil, err
	}
	if err := overrideFloat("TITRATE_MAX_FAIL_FRAC", &cfg.Toys.MaxFailureFraction); err != nil {
		return nil, err
	}
	if err := overrideFloat("TITRATE_LIMIT_MU_TOLERANCE", &cfg.Limit.MuTolerance); err != nil {
		return nil, err
	}
	if err := overrideFloat("TITRATE_LIMIT_MAX_MU", &cfg.Limit.MaxMu); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Fit.Tolerance <= 0 {
		return errors.ConfigInvalid("fit tolerance must be > 0")
	}
	if c.Fit.MaxEvaluations <= 0 {
		return errors.ConfigInvalid("fit evaluation budget must be > 0")
	}
	if c.Fit.MaxRestarts < 0 {
		return errors.ConfigInvalid("fit restarts must be >= 0")
	}
	if c.Toys.Workers <= 0 {
		return errors.ConfigInvalid("toy workers must be > 0")
	}
	if c.Toys.MaxFailureFraction < 0 || c.Toys.MaxFailureFraction >= 1 {
		return errors.ConfigInvalid("toy failure fraction must be in [0, 1)")
	}
	if c.Limit.MuTolerance <= 0 || c.Limit.MaxMu <= 0 {
		return errors.ConfigInvalid("limit tolerance and max mu must be > 0")
	}
	return nil
}

func overrideFloat(key string, dst *float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errors.ConfigInvalid(key + " is not a valid float: " + raw)
	}
	*dst = v
	return nil
}

func overrideInt(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return errors.ConfigInvalid(key + " is not a valid integer: " + raw)
	}
	*dst = v
	return nil
}
