package calibrate

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/organsim/organsim/sim"
)

// Policy names a fitting policy.
type Policy string

const (
	// PolicyFirstTimepoint fits r with fixed k to the earliest timepoint only.
	PolicyFirstTimepoint Policy = "first-timepoint"
	// PolicyFixedMax fits r with fixed k to all timepoints.
	PolicyFixedMax Policy = "fixed-k"
	// PolicyJoint fits r and k to all timepoints.
	PolicyJoint Policy = "joint"
)

// Result is a fitted growth law.
type Result struct {
	Policy       Policy
	R            float64 // initial elongation rate [cm day-1]
	K            float64 // maximal length [cm]
	Iterations   int
	SSE          float64 // sum of squared residuals
	Observations int
}

// Length evaluates the fitted growth law at time t.
func (r *Result) Length(t float64) float64 {
	return sim.NegExpGrowth{}.Length(t, r.R, r.K)
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: r = %.4g cm/day, k = %.4g cm (%d observations, sse %.4g)",
		r.Policy, r.R, r.K, r.Observations, r.SSE)
}

// Calibrator runs the fitting policies with fixed solver options.
type Calibrator struct {
	opts Options
}

// NewCalibrator returns a Calibrator. Zero option fields take the defaults.
func NewCalibrator(opts Options) *Calibrator {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	return &Calibrator{opts: opts}
}

// FitRateFirstTimepoint fits r to the observations at the earliest measured
// time, k fixed.
func FitRateFirstTimepoint(tab *Table, k float64) (*Result, error) {
	return NewCalibrator(DefaultOptions()).FitRateFirstTimepoint(tab, k)
}

// FitRate fits r to all observations, k fixed.
func FitRate(tab *Table, k float64) (*Result, error) {
	return NewCalibrator(DefaultOptions()).FitRate(tab, k)
}

// FitRateAndMax fits r and k to all observations starting from k0.
func FitRateAndMax(tab *Table, k0 float64) (*Result, error) {
	return NewCalibrator(DefaultOptions()).FitRateAndMax(tab, k0)
}

// FitRateFirstTimepoint fits r with k fixed to the earliest row of tab
// holding at least one measurement. Rows before it are empty, e.g. for
// plants measured at harvest only.
func (c *Calibrator) FitRateFirstTimepoint(tab *Table, k float64) (*Result, error) {
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	row := tab.FirstMeasuredRow()
	if row < 0 {
		return nil, ErrNoObservations
	}
	return c.fitRate(tab, k, row+1, PolicyFirstTimepoint)
}

// FitRate fits r with k fixed to every measurement of tab.
func (c *Calibrator) FitRate(tab *Table, k float64) (*Result, error) {
	return c.fitRate(tab, k, 0, PolicyFixedMax)
}

func (c *Calibrator) fitRate(tab *Table, k float64, nTimes int, policy Policy) (*Result, error) {
	if k <= 0 || math.IsNaN(k) {
		return nil, fmt.Errorf("%w: maximal length must be positive, got %g", sim.ErrInvalidArgument, k)
	}
	ts, ls, err := observations(tab, nTimes)
	if err != nil {
		return nil, err
	}
	r0 := c.opts.InitialRate
	if r0 <= 0 {
		r0 = initialRate(ts, ls, k)
	}
	f := func(p []float64, t float64, grad []float64) float64 {
		e := math.Exp(-p[0] * t / k)
		grad[0] = t * e
		return k * (1 - e)
	}
	sol, err := levenbergMarquardt(f, []float64{r0}, ts, ls, c.opts, policy)
	if err != nil {
		return nil, err
	}
	res := &Result{Policy: policy, R: sol.params[0], K: k, Iterations: sol.iterations, SSE: sol.sse, Observations: len(ts)}
	logrus.Debugf("calibrate: %s", res)
	return res, nil
}

// FitRateAndMax fits r and k jointly to every measurement of tab. k0 is the
// starting maximal length and is raised above the longest observation.
func (c *Calibrator) FitRateAndMax(tab *Table, k0 float64) (*Result, error) {
	ts, ls, err := observations(tab, 0)
	if err != nil {
		return nil, err
	}
	// the initial rate estimate needs every observation below k
	if maxL := floats.Max(ls); k0 <= maxL {
		k0 = 1.5 * maxL
	}
	r0 := c.opts.InitialRate
	if r0 <= 0 {
		r0 = initialRate(ts, ls, k0)
	}
	f := func(p []float64, t float64, grad []float64) float64 {
		r, k := p[0], p[1]
		e := math.Exp(-r * t / k)
		grad[0] = t * e
		grad[1] = (1 - e) - r*t/k*e
		return k * (1 - e)
	}
	sol, err := levenbergMarquardt(f, []float64{r0, k0}, ts, ls, c.opts, PolicyJoint)
	if err != nil {
		return nil, err
	}
	res := &Result{Policy: PolicyJoint, R: sol.params[0], K: sol.params[1], Iterations: sol.iterations, SSE: sol.sse, Observations: len(ts)}
	logrus.Debugf("calibrate: %s", res)
	return res, nil
}

// Results bundles the three policies.
type Results struct {
	FirstTimepoint *Result
	FixedMax       *Result
	Joint          *Result
}

// All returns the non-nil results in policy order.
func (r *Results) All() []*Result {
	var v []*Result
	for _, res := range []*Result{r.FirstTimepoint, r.FixedMax, r.Joint} {
		if res != nil {
			v = append(v, res)
		}
	}
	return v
}

// FitAll runs the three policies concurrently. k is the fixed maximal
// length and the joint fit's starting point. The first failing policy
// cancels the others and its error is returned.
func (c *Calibrator) FitAll(ctx context.Context, tab *Table, k float64) (*Results, error) {
	g, ctx := errgroup.WithContext(ctx)
	var out Results
	run := func(dst **Result, fit func() (*Result, error)) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := fit()
			if err != nil {
				return err
			}
			*dst = res
			return nil
		})
	}
	run(&out.FirstTimepoint, func() (*Result, error) { return c.FitRateFirstTimepoint(tab, k) })
	run(&out.FixedMax, func() (*Result, error) { return c.FitRate(tab, k) })
	run(&out.Joint, func() (*Result, error) { return c.FitRateAndMax(tab, k) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func observations(tab *Table, nTimes int) (ts, ls []float64, err error) {
	if err := tab.Validate(); err != nil {
		return nil, nil, err
	}
	ts, ls = tab.Observations(nTimes)
	if len(ts) == 0 {
		return nil, nil, ErrNoObservations
	}
	return ts, ls, nil
}

// initialRate averages the closed-form rates r = -k ln(1 - l/k) / t of the
// observations below k at positive times.
func initialRate(ts, ls []float64, k float64) float64 {
	g := sim.NegExpGrowth{}
	var rates []float64
	for i, t := range ts {
		if t <= 0 || ls[i] <= 0 {
			continue
		}
		// the age at rate 1 scales inversely with the rate
		a, err := g.Age(ls[i], 1, k)
		if err != nil {
			continue
		}
		rates = append(rates, a/t)
	}
	if len(rates) == 0 {
		return 1
	}
	return floats.Sum(rates) / float64(len(rates))
}
