package ports

import "context"

// OptimizeResult is the outcome of one bounded minimization.
type OptimizeResult struct {
	X               []float64 // location of the minimum found
	F               float64   // objective value at X
	Converged       bool      // whether the optimizer's own criterion fired
	FuncEvaluations int
}

// Optimizer is a pluggable bounded multivariate minimization strategy.
// Implementations must honor the box bounds as constraints during the
// search, not by clipping the returned location afterwards.
type Optimizer interface {
	// Minimize searches for the minimum of f starting from x0 inside
	// the box [lower[i], upper[i]] per dimension. A non-converged
	// search returns a result with Converged=false, not an error;
	// errors are reserved for invalid input or broken objectives.
	Minimize(ctx context.Context, f func(x []float64) float64, x0, lower, upper []float64) (OptimizeResult, error)
}
