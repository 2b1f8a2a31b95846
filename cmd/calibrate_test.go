package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organsim/organsim/sim"
	"github.com/organsim/organsim/sim/calibrate"
)

// writeObservations writes lengths of two subjects growing with rate r
// towards k, the second one 10% longer.
func writeObservations(t *testing.T, r, k float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,a,b\n")
	for _, tm := range []float64{4, 8, 12, 16, 20} {
		l := sim.NegExpGrowth{}.Length(tm, r, k)
		fmt.Fprintf(&b, "%g,%g,%g\n", tm, 0.95*l, 1.05*l)
	}
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestCalibrateObservations_ReportsAllPolicies(t *testing.T) {
	// GIVEN lengths following r=1.5, k=40
	path := writeObservations(t, 1.5, 40)
	chart := filepath.Join(t.TempDir(), "fit.png")
	var out bytes.Buffer

	// WHEN calibrating with a chart
	opts := calibrateOptions{observations: path, k0: 50, chart: chart, maxIter: 200}
	require.NoError(t, calibrateObservations(context.Background(), &out, opts))

	// THEN every policy is reported with its fit quality
	for _, p := range []calibrate.Policy{calibrate.PolicyFirstTimepoint, calibrate.PolicyFixedMax, calibrate.PolicyJoint} {
		assert.Contains(t, out.String(), string(p)+":")
	}
	assert.Equal(t, 3, strings.Count(out.String(), "MAPE"))
	assert.Equal(t, 3, strings.Count(out.String(), "RMSE"))
	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestLoadObservations_RSMLNeedsTimes(t *testing.T) {
	_, err := loadObservations("../sim/rsml/testdata/DAP19.rsml", nil)
	assert.ErrorIs(t, err, calibrate.ErrInvalidTable)
}

func TestLoadObservations_RSML(t *testing.T) {
	tab, err := loadObservations("../sim/rsml/testdata/DAP19.rsml", []float64{5, 11, 17})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 11, 17}, tab.Times)
	require.Len(t, tab.Subjects, 1)
}
