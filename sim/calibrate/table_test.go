package calibrate

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organsim/organsim/sim/internal/testutil"
)

func TestReadTableCSV(t *testing.T) {
	in := `time,maize2,maize4,maize6
11,5.5,,6.1
15,9.25,10,NaN
19,14,15.5,16
`
	tab, err := ReadTableCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []float64{11, 15, 19}, tab.Times)
	assert.Equal(t, []string{"maize2", "maize4", "maize6"}, tab.Subjects)
	assert.Equal(t, 5.5, tab.Lengths[0][0])
	assert.True(t, math.IsNaN(tab.Lengths[0][1]))
	assert.True(t, math.IsNaN(tab.Lengths[1][2]))

	ts, ls := tab.Observations(0)
	assert.Len(t, ts, 7)
	assert.Equal(t, 11.0, ts[0])
	assert.Equal(t, 16.0, ls[6])

	ts, _ = tab.Observations(1)
	assert.Equal(t, []float64{11, 11}, ts)
}

func TestTable_WriteReadCSV(t *testing.T) {
	// GIVEN a table with a missing cell
	tab := syntheticTable()

	// WHEN writing and reading it back
	var buf bytes.Buffer
	require.NoError(t, tab.WriteCSV(&buf))
	got, err := ReadTableCSV(&buf)
	require.NoError(t, err)

	// THEN times, subjects and measured cells survive
	assert.Equal(t, tab.Times, got.Times)
	assert.Equal(t, tab.Subjects, got.Subjects)
	wantT, wantL := tab.Observations(0)
	gotT, gotL := got.Observations(0)
	assert.Equal(t, wantT, gotT)
	assert.Equal(t, wantL, gotL)
}

func TestReadTableCSV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"bad header", "day,a\n1,2\n"},
		{"no subjects", "time\n1\n"},
		{"bad time", "time,a\nx,2\n"},
		{"bad length", "time,a\n1,abc\n"},
		{"negative length", "time,a\n1,-2\n"},
		{"descending times", "time,a\n5,1\n2,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTableCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
	_, err := ReadTableCSV(strings.NewReader("time,a\n1,-2\n"))
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestLoadTable(t *testing.T) {
	path := testutil.WriteTempFile(t, "obs.csv", "time,a,b\n7,3,3.5\n")
	tab, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 3.5}}, tab.Lengths)

	_, err = LoadTable(path + ".missing")
	assert.Error(t, err)
}

func TestCompare_ExactFit(t *testing.T) {
	comp, err := Compare(syntheticTable(), &Result{Policy: PolicyJoint, R: trueRate, K: trueMax})
	require.NoError(t, err)
	assert.Equal(t, PolicyJoint, comp.Policy)
	assert.Equal(t, 23, comp.Count)
	assert.InDelta(t, 0, comp.MAPE, 1e-12)
	assert.InDelta(t, 1, comp.PearsonR, 1e-12)
	assert.Equal(t, "excellent", comp.Quality)
}

func TestComputeComparison(t *testing.T) {
	observed := []float64{10, 20, 30, 40}
	predicted := []float64{12, 24, 36, 48}

	comp, err := ComputeComparison(observed, predicted)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, comp.MAPE, 1e-12)
	assert.Equal(t, "over-predict", comp.BiasDirection)
	assert.InDelta(t, 1, comp.PearsonR, 1e-12)
	assert.Equal(t, "fair", comp.Quality)
	assert.InDelta(t, 25, comp.ObservedMean, 1e-12)
	assert.InDelta(t, 30, comp.FitMean, 1e-12)
	assert.InDelta(t, math.Sqrt(30), comp.RMSE, 1e-12)
	assert.InDelta(t, 8, comp.MaxAbsError, 1e-12)

	_, err = ComputeComparison(observed, predicted[:2])
	assert.Error(t, err)
	_, err = ComputeComparison(nil, nil)
	assert.True(t, errors.Is(err, ErrNoObservations))
}

func TestQualityRating(t *testing.T) {
	tests := []struct {
		mape, r float64
		want    string
	}{
		{0.05, 0.99, "excellent"},
		{0.15, 0.90, "good"},
		{0.30, 0.75, "fair"},
		{0.50, 0.99, "poor"},
		{0.05, 0.50, "poor"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualityRating(tt.mape, tt.r))
	}
}
