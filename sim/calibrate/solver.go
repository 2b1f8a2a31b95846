package calibrate

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	initialDamping = 1e-3
	maxDamping     = 1e16
	// exactFitTolerance bounds ‖r‖/‖y‖ of a fit exact to rounding.
	exactFitTolerance = 1e-10
	// gradientTolerance bounds the cosine between the residuals and each
	// Jacobian column at a minimum.
	gradientTolerance = 1e-6
)

// Options configures the least-squares solver.
type Options struct {
	// MaxIterations bounds the number of accepted LM steps.
	MaxIterations int
	// Tolerance on the relative parameter step.
	Tolerance float64
	// InitialRate overrides the closed-form starting rate when positive.
	InitialRate float64
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{MaxIterations: 100, Tolerance: 1e-10}
}

// model evaluates a curve at t and writes its gradient with respect to the
// parameters into grad.
type model func(p []float64, t float64, grad []float64) float64

// solution is the outcome of a converged solve.
type solution struct {
	params     []float64
	iterations int
	sse        float64
}

// levenbergMarquardt minimizes Σ (ys[i] - f(p, ts[i]))² over strictly
// positive parameters. Steps leaving the positive orthant are rejected
// like steps that increase the cost.
func levenbergMarquardt(f model, p0, ts, ys []float64, opts Options, policy Policy) (*solution, error) {
	n, m := len(p0), len(ts)
	p := append([]float64(nil), p0...)
	grad := make([]float64, n)
	res := make([]float64, m)

	cost := sumSquares(f, p, ts, ys, res, grad)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, &ConvergenceError{Policy: policy, Params: p, Reason: "non-finite residuals at initial guess"}
	}

	jac := mat.NewDense(m, n, nil)
	var jtj mat.Dense
	jtr := mat.NewVecDense(n, nil)
	a := mat.NewDense(n, n, nil)
	step := mat.NewVecDense(n, nil)
	trial := make([]float64, n)
	lambda := initialDamping

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if cost == 0 {
			return &solution{params: p, iterations: iter - 1}, nil
		}
		for i, t := range ts {
			res[i] = ys[i] - f(p, t, grad)
			jac.SetRow(i, grad)
		}
		jtj.Mul(jac.T(), jac)
		jtr.MulVec(jac.T(), mat.NewVecDense(m, res))

		accepted := false
		for !accepted && lambda < maxDamping {
			a.Copy(&jtj)
			for d := 0; d < n; d++ {
				a.Set(d, d, jtj.At(d, d)*(1+lambda)+lambda*1e-12)
			}
			if err := step.SolveVec(a, jtr); err != nil {
				lambda *= 10
				continue
			}
			feasible := true
			for d := 0; d < n; d++ {
				trial[d] = p[d] + step.AtVec(d)
				if trial[d] <= 0 || math.IsNaN(trial[d]) {
					feasible = false
				}
			}
			if !feasible {
				lambda *= 10
				continue
			}
			trialCost := sumSquares(f, trial, ts, ys, nil, grad)
			if math.IsNaN(trialCost) || trialCost >= cost {
				lambda *= 10
				continue
			}
			accepted = true
			relStep := 0.0
			for d := 0; d < n; d++ {
				relStep = math.Max(relStep, math.Abs(trial[d]-p[d])/math.Abs(p[d]))
			}
			copy(p, trial)
			cost = trialCost
			// a heavily damped step is short regardless of the distance to the minimum
			converged := relStep < opts.Tolerance && lambda <= 1
			lambda = math.Max(lambda/10, 1e-12)
			logrus.Debugf("calibrate %s: iteration %d, params %v, sse %.6g", policy, iter, p, cost)
			if converged {
				return &solution{params: p, iterations: iter, sse: cost}, nil
			}
		}
		if !accepted {
			if stationary(&jtj, jtr, res, ys) {
				return &solution{params: p, iterations: iter, sse: cost}, nil
			}
			return nil, &ConvergenceError{Policy: policy, Iterations: iter, Params: p, Reason: "stalled"}
		}
	}
	return nil, &ConvergenceError{Policy: policy, Iterations: opts.MaxIterations, Params: p, Reason: "iteration budget exhausted"}
}

// stationary reports whether no step can lower the cost at the point the
// residuals res were taken: the fit is exact to rounding, or res is
// orthogonal to every Jacobian column. A vanishing column is a plateau
// where the curve ignores that parameter, not a minimum.
func stationary(jtj *mat.Dense, jtr *mat.VecDense, res, ys []float64) bool {
	rNorm := floats.Norm(res, 2)
	if rNorm <= exactFitTolerance*floats.Norm(ys, 2) {
		return true
	}
	for d := 0; d < jtr.Len(); d++ {
		col := math.Sqrt(jtj.At(d, d))
		if col == 0 || math.Abs(jtr.AtVec(d)) > gradientTolerance*col*rNorm {
			return false
		}
	}
	return true
}

// sumSquares returns the sum of squared residuals at p. res may be nil.
func sumSquares(f model, p, ts, ys, res, grad []float64) float64 {
	if res == nil {
		res = make([]float64, len(ts))
	}
	for i, t := range ts {
		res[i] = ys[i] - f(p, t, grad)
	}
	return floats.Dot(res, res)
}
