package sim

import (
	"fmt"
	"math"
)

// GrowthFunction maps organ age to axial length and back.
// Implementations are pure; r is the initial elongation rate and k the
// maximal length.
type GrowthFunction interface {
	// Length returns the length of an organ of the given age.
	Length(age, r, k float64) float64
	// Age returns the age at which the organ reaches length l.
	// Fails with ErrDomain when l can never be reached in finite time.
	Age(l, r, k float64) (float64, error)
}

// Growth function identifiers used by RandomParameterSet.Gf.
const (
	GrowthNegExp = 1
	GrowthLinear = 2
)

// NewGrowthFunction returns the growth function registered under id.
func NewGrowthFunction(id int) (GrowthFunction, error) {
	switch id {
	case 0, GrowthNegExp:
		return NegExpGrowth{}, nil
	case GrowthLinear:
		return LinearGrowth{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown growth function %d", ErrInvalidArgument, id)
	}
}

// NegExpGrowth is the negative exponential growth law
//
//	l(t) = k (1 - exp(-r t / k))
//
// which starts with slope r and approaches k asymptotically.
type NegExpGrowth struct{}

func (NegExpGrowth) Length(age, r, k float64) float64 {
	if age <= 0 || k <= 0 {
		return 0
	}
	return k * (1 - math.Exp(-r*age/k))
}

func (NegExpGrowth) Age(l, r, k float64) (float64, error) {
	if l < 0 {
		return 0, fmt.Errorf("%w: negative length %g", ErrInvalidArgument, l)
	}
	if l >= k {
		return math.Inf(1), fmt.Errorf("%w: length %g not below maximal length %g", ErrDomain, l, k)
	}
	if l == 0 {
		return 0, nil
	}
	return -math.Log(1-l/k) * k / r, nil
}

// LinearGrowth elongates at constant rate r until k is reached.
type LinearGrowth struct{}

func (LinearGrowth) Length(age, r, k float64) float64 {
	if age <= 0 || k <= 0 {
		return 0
	}
	return math.Min(r*age, k)
}

func (LinearGrowth) Age(l, r, k float64) (float64, error) {
	if l < 0 {
		return 0, fmt.Errorf("%w: negative length %g", ErrInvalidArgument, l)
	}
	if l > k {
		return math.Inf(1), fmt.Errorf("%w: length %g above maximal length %g", ErrDomain, l, k)
	}
	if l == 0 {
		return 0, nil
	}
	return l / r, nil
}
