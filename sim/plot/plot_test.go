package plot

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organsim/organsim/sim/calibrate"
)

func observations() *calibrate.Table {
	tab := calibrate.NewTable([]float64{11, 15, 19}, []string{"a", "b"})
	tab.Lengths[0] = []float64{8, 9}
	tab.Lengths[1] = []float64{12, 13}
	tab.Lengths[2] = []float64{15, 16.5}
	return tab
}

func TestLengthSeries(t *testing.T) {
	out := LengthSeries("total length", []float64{1, 2, 3, 4}, []float64{0.5, 1.5, 2.5, 3})
	assert.Contains(t, out, "total length (t = 1 .. 4)")
	assert.Greater(t, len(strings.Split(out, "\n")), 5)

	assert.Equal(t, "", LengthSeries("empty", nil, nil))
}

func TestWriteFitChart(t *testing.T) {
	// GIVEN observations and two fitted curves
	results := []*calibrate.Result{
		{Policy: calibrate.PolicyFixedMax, R: 1, K: 50},
		{Policy: calibrate.PolicyJoint, R: 1.2, K: 25},
	}

	// WHEN rendering the chart
	var buf bytes.Buffer
	require.NoError(t, WriteFitChart(&buf, observations(), results))

	// THEN a decodable PNG of the configured size is written
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestWriteFitChart_NoObservations(t *testing.T) {
	tab := calibrate.NewTable([]float64{1}, []string{"a"})
	err := WriteFitChart(&bytes.Buffer{}, tab, nil)
	assert.ErrorIs(t, err, calibrate.ErrNoObservations)
}

func TestSaveFitChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fit.png")
	require.NoError(t, SaveFitChart(path, observations(), []*calibrate.Result{{Policy: calibrate.PolicyJoint, R: 1, K: 20}}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
