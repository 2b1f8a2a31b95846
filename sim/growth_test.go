package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegExpGrowth_Length(t *testing.T) {
	g := NegExpGrowth{}
	tests := []struct {
		name string
		age  float64
		want float64
	}{
		{"zero age", 0, 0},
		{"negative age", -1, 0},
		{"half day", 0.5, 100 * (1 - math.Exp(-0.005))},
		{"long run approaches k", 5000, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, g.Length(tt.age, 1, 100), 1e-9)
		})
	}
	assert.Equal(t, 0.0, g.Length(10, 1, 0), "k = 0 never grows")
}

func TestNegExpGrowth_InitialSlopeIsRate(t *testing.T) {
	g := NegExpGrowth{}
	h := 1e-6
	slope := g.Length(h, 2.5, 40) / h
	assert.InDelta(t, 2.5, slope, 1e-4)
}

func TestNegExpGrowth_AgeInvertsLength(t *testing.T) {
	g := NegExpGrowth{}
	for _, age := range []float64{0.1, 1, 7, 30, 60} {
		l := g.Length(age, 1, 100)
		got, err := g.Age(l, 1, 100)
		require.NoError(t, err)
		assert.InDelta(t, age, got, 1e-9*math.Max(1, age), "age %g", age)
	}
}

func TestNegExpGrowth_Age_Errors(t *testing.T) {
	g := NegExpGrowth{}

	// GIVEN a length at the asymptote
	// WHEN inverting
	a, err := g.Age(100, 1, 100)
	// THEN a domain error is reported
	assert.True(t, errors.Is(err, ErrDomain))
	assert.True(t, math.IsInf(a, 1))

	_, err = g.Age(-1, 1, 100)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	a, err = g.Age(0, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a)
}

func TestLinearGrowth(t *testing.T) {
	g := LinearGrowth{}
	assert.Equal(t, 2.0, g.Length(2, 1, 3))
	assert.Equal(t, 3.0, g.Length(10, 1, 3))

	a, err := g.Age(1.5, 0.5, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, a)

	_, err = g.Age(4, 1, 3)
	assert.True(t, errors.Is(err, ErrDomain))
}

func TestNewGrowthFunction(t *testing.T) {
	for _, id := range []int{0, GrowthNegExp} {
		g, err := NewGrowthFunction(id)
		require.NoError(t, err)
		assert.IsType(t, NegExpGrowth{}, g)
	}
	g, err := NewGrowthFunction(GrowthLinear)
	require.NoError(t, err)
	assert.IsType(t, LinearGrowth{}, g)

	_, err = NewGrowthFunction(7)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
