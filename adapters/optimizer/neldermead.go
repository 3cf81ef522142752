package optimizer

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/StFroese/titrate/internal/errors"
	"github.com/StFroese/titrate/ports"
)

// NelderMead adapts gonum's gradient-free simplex method to the
// bounded-minimizer port. The box constraint is enforced inside the
// search: any point outside the bounds evaluates to +Inf, which the
// simplex contracts away from, so the optimizer never settles outside
// the feasible region.
type NelderMead struct {
	Tolerance      float64 // absolute function-convergence tolerance
	MaxEvaluations int     // objective evaluation budget
}

var _ ports.Optimizer = (*NelderMead)(nil)

// New creates a Nelder-Mead adapter with the given tolerance and
// evaluation budget.
func New(tolerance float64, maxEvaluations int) *NelderMead {
	return &NelderMead{Tolerance: tolerance, MaxEvaluations: maxEvaluations}
}

// Minimize searches for the minimum of f inside the box bounds.
func (nm *NelderMead) Minimize(ctx context.Context, f func(x []float64) float64, x0, lower, upper []float64) (ports.OptimizeResult, error) {
	if len(x0) == 0 {
		return ports.OptimizeResult{}, errors.InvalidInput("minimize needs at least one dimension")
	}
	if len(lower) != len(x0) || len(upper) != len(x0) {
		return ports.OptimizeResult{}, errors.InvalidInput("bounds must match the dimension of x0")
	}
	for i := range x0 {
		if lower[i] > upper[i] {
			return ports.OptimizeResult{}, errors.InvalidInput("lower bound exceeds upper bound")
		}
	}

	start := clampToBounds(x0, lower, upper)
	bounded := func(x []float64) float64 {
		for i := range x {
			if x[i] < lower[i] || x[i] > upper[i] {
				return math.Inf(1)
			}
		}
		if err := ctx.Err(); err != nil {
			// A cancelled context poisons the objective so the simplex
			// stalls out quickly; fits are short enough that finer
			// grained cancellation is not needed.
			return math.Inf(1)
		}
		return f(x)
	}

	problem := optimize.Problem{Func: bounded}
	settings := &optimize.Settings{
		FuncEvaluations: nm.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   nm.Tolerance,
			Iterations: 100,
		},
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
	if err != nil {
		return ports.OptimizeResult{}, errors.Wrap(err, "nelder-mead minimization failed")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ports.OptimizeResult{}, ctxErr
	}

	converged := false
	switch result.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.StepConvergence,
		optimize.FunctionThreshold, optimize.GradientThreshold:
		converged = true
	}
	if math.IsInf(result.F, 1) || math.IsNaN(result.F) {
		converged = false
	}

	return ports.OptimizeResult{
		X:               result.X,
		F:               result.F,
		Converged:       converged,
		FuncEvaluations: result.FuncEvaluations,
	}, nil
}

func clampToBounds(x, lower, upper []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case v < lower[i]:
			out[i] = lower[i]
		case v > upper[i]:
			out[i] = upper[i]
		default:
			out[i] = v
		}
	}
	return out
}
