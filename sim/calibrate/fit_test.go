package calibrate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organsim/organsim/sim"
	"github.com/organsim/organsim/sim/internal/testutil"
)

const (
	trueRate = 1.7
	trueMax  = 42.0
)

// syntheticTable measures five subjects following the growth law exactly.
// Subjects 3 and 4 miss the first timepoint.
func syntheticTable() *Table {
	times := []float64{3, 7, 11, 15, 19}
	tab := NewTable(times, []string{"p1", "p2", "p3", "p4", "p5"})
	g := sim.NegExpGrowth{}
	for i, t := range times {
		for j := range tab.Subjects {
			if i == 0 && j >= 3 {
				continue
			}
			tab.Lengths[i][j] = g.Length(t, trueRate, trueMax)
		}
	}
	return tab
}

// noisyTable perturbs each subject by a fixed relative offset.
func noisyTable() *Table {
	tab := syntheticTable()
	offsets := []float64{-0.04, 0.02, 0.05, -0.01, -0.02}
	for i := range tab.Lengths {
		for j := range tab.Lengths[i] {
			tab.Lengths[i][j] *= 1 + offsets[j]
		}
	}
	return tab
}

func TestFitRateFirstTimepoint_RecoversRate(t *testing.T) {
	res, err := FitRateFirstTimepoint(syntheticTable(), trueMax)
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstTimepoint, res.Policy)
	assert.Equal(t, 3, res.Observations)
	testutil.AssertFloat64Equal(t, "r", trueRate, res.R, 1e-8)
	assert.Equal(t, trueMax, res.K)
}

func TestFitRate_RecoversRate(t *testing.T) {
	res, err := FitRate(syntheticTable(), trueMax)
	require.NoError(t, err)
	assert.Equal(t, 23, res.Observations)
	testutil.AssertFloat64Equal(t, "r", trueRate, res.R, 1e-8)
}

func TestFitRateAndMax_RecoversBoth(t *testing.T) {
	// GIVEN exact observations and a starting point away from the truth
	tab := syntheticTable()

	// WHEN fitting rate and maximal length jointly
	res, err := FitRateAndMax(tab, 50)

	// THEN both parameters are recovered
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "r", trueRate, res.R, 1e-6)
	testutil.AssertFloat64Equal(t, "k", trueMax, res.K, 1e-6)
	assert.Less(t, res.SSE, 1e-8)
}

func TestFitRateAndMax_StartBelowObservations(t *testing.T) {
	res, err := FitRateAndMax(syntheticTable(), 5)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "k", trueMax, res.K, 1e-6)
}

func TestFitRateAndMax_NoisyData(t *testing.T) {
	res, err := FitRateAndMax(noisyTable(), 50)
	require.NoError(t, err)
	assert.InDelta(t, trueRate, res.R, 0.2)
	assert.InDelta(t, trueMax, res.K, 5)

	comp, err := Compare(noisyTable(), res)
	require.NoError(t, err)
	assert.Less(t, comp.MAPE, 0.10)
	assert.Equal(t, "excellent", comp.Quality)
}

func TestFit_IterationBudget(t *testing.T) {
	c := NewCalibrator(Options{MaxIterations: 1, InitialRate: 0.1})
	_, err := c.FitRateAndMax(syntheticTable(), 100)

	assert.True(t, errors.Is(err, ErrConvergence))
	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, PolicyJoint, ce.Policy)
	assert.Equal(t, 1, ce.Iterations)
}

func TestFitRate_StalledStartFails(t *testing.T) {
	// GIVEN a starting rate so large that every observation sits on the
	// plateau at k and the curve no longer responds to r
	c := NewCalibrator(Options{InitialRate: 1e6})

	// WHEN fitting
	res, err := c.FitRate(syntheticTable(), trueMax)

	// THEN the caller gets a convergence error instead of the start value
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrConvergence)
	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, PolicyFixedMax, ce.Policy)
	assert.Equal(t, "stalled", ce.Reason)
	assert.Equal(t, []float64{1e6}, ce.Params)
}

func TestFitRate_RetryFromAnotherGuess(t *testing.T) {
	_, err := NewCalibrator(Options{InitialRate: 1e6}).FitRate(syntheticTable(), trueMax)
	require.ErrorIs(t, err, ErrConvergence)

	res, err := NewCalibrator(Options{InitialRate: 1}).FitRate(syntheticTable(), trueMax)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "r", trueRate, res.R, 1e-8)
}

func TestFitRateFirstTimepoint_SkipsEmptyLeadingRows(t *testing.T) {
	// GIVEN a table whose earliest time has no measurement at all
	tab := syntheticTable()
	for j := range tab.Lengths[0] {
		tab.Lengths[0][j] = math.NaN()
	}

	// WHEN fitting the first time point
	res, err := FitRateFirstTimepoint(tab, trueMax)

	// THEN the earliest measured row (t=7, five subjects) is used
	require.NoError(t, err)
	assert.Equal(t, 5, res.Observations)
	testutil.AssertFloat64Equal(t, "r", trueRate, res.R, 1e-8)
}

func TestCalibrator_FitAll_FinalTimepointOnly(t *testing.T) {
	// GIVEN subjects measured at the last time point only
	tab := syntheticTable()
	last := len(tab.Times) - 1
	for i := 0; i < last; i++ {
		for j := range tab.Lengths[i] {
			tab.Lengths[i][j] = math.NaN()
		}
	}

	// WHEN running the fixed-k policies through FitAll
	results, err := NewCalibrator(Options{}).FitAll(context.Background(), tab, trueMax)

	// THEN both recover the rate from the final row
	require.NoError(t, err)
	assert.Equal(t, 5, results.FirstTimepoint.Observations)
	assert.Equal(t, 5, results.FixedMax.Observations)
	testutil.AssertFloat64Equal(t, "first-timepoint r", trueRate, results.FirstTimepoint.R, 1e-8)
	testutil.AssertFloat64Equal(t, "fixed-k r", trueRate, results.FixedMax.R, 1e-8)
	require.NotNil(t, results.Joint)
}

func TestFit_InvalidInput(t *testing.T) {
	_, err := FitRate(syntheticTable(), 0)
	assert.True(t, errors.Is(err, sim.ErrInvalidArgument))

	empty := NewTable([]float64{1, 2}, []string{"a"})
	_, err = FitRate(empty, 10)
	assert.True(t, errors.Is(err, ErrNoObservations))
	_, err = FitRateAndMax(empty, 10)
	assert.True(t, errors.Is(err, ErrNoObservations))
	_, err = FitRateFirstTimepoint(empty, 10)
	assert.True(t, errors.Is(err, ErrNoObservations))

	bad := syntheticTable()
	bad.Lengths[1][0] = -3
	_, err = FitRate(bad, 10)
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestCalibrator_FitAll(t *testing.T) {
	c := NewCalibrator(Options{})
	results, err := c.FitAll(context.Background(), syntheticTable(), trueMax)
	require.NoError(t, err)

	all := results.All()
	require.Len(t, all, 3)
	assert.Equal(t, []Policy{PolicyFirstTimepoint, PolicyFixedMax, PolicyJoint},
		[]Policy{all[0].Policy, all[1].Policy, all[2].Policy})
	for _, res := range all {
		testutil.AssertFloat64Equal(t, string(res.Policy), trueRate, res.R, 1e-6)
	}
}

func TestCalibrator_FitAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCalibrator(Options{}).FitAll(ctx, syntheticTable(), trueMax)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResult_Length(t *testing.T) {
	res := &Result{R: trueRate, K: trueMax}
	assert.Equal(t, 0.0, res.Length(0))
	assert.InDelta(t, trueMax*(1-math.Exp(-trueRate*10/trueMax)), res.Length(10), 1e-12)
	assert.Contains(t, res.String(), "r = 1.7")
}
