package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/organsim/organsim/sim/internal/testutil"
)

func TestSummarize_AfterThirtyDays(t *testing.T) {
	org, _ := newStem(t, 1)
	require.NoError(t, org.Simulate(30))

	s := Summarize(org)

	assert.Equal(t, 30.0, s.Time)
	assert.Equal(t, 5, s.Organs)
	assert.Equal(t, 2, s.MaxOrder)
	assert.Equal(t, map[string]int{"stem": 5}, s.OrgansByType)
	testutil.AssertFloat64Equal(t, "total length", analyticTotalLength(30), s.TotalLength, 1e-9)
	testutil.AssertFloat64Equal(t, "order 1 length", NegExpGrowth{}.Length(30, 1, 100), s.LengthByOrder[1], 1e-12)
	testutil.AssertFloat64Equal(t, "mean length", s.TotalLength/5, s.MeanLength, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(NewOrganism(1))
	assert.Equal(t, 0, s.Organs)
	assert.Equal(t, 0.0, s.TotalLength)
}

func TestParameterAggregates(t *testing.T) {
	org, _ := newStem(t, 1)
	require.NoError(t, org.Simulate(30))
	organs := org.Organs(OrganTypeAny)

	assert.Equal(t, 9.0, SumParameter(organs, "order"))
	assert.InDelta(t, 1.8, MeanParameter(organs, "subType"), 1e-12)
	assert.True(t, math.IsNaN(SumParameter(organs, "nope")))
	assert.True(t, math.IsNaN(MeanParameter(nil, "length")))
}
