package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// successorProbTolerance bounds how far successor probabilities may sum away from 1.
const successorProbTolerance = 1e-6

// RandomParameterSet describes the distribution of organ parameters for one
// (organ type, subtype). Every stochastic field is a mean plus a standard
// deviation; the deviation fields carry an "s" suffix as in the parameter files.
type RandomParameterSet struct {
	Name      string    `yaml:"name"`
	OrganType OrganType `yaml:"organ_type"`
	SubType   int       `yaml:"sub_type"`

	Lb   float64 `yaml:"lb"`             // basal zone [cm]
	Lbs  float64 `yaml:"lbs,omitempty"`  // deviation of basal zone [cm]
	La   float64 `yaml:"la"`             // apical zone [cm]
	Las  float64 `yaml:"las,omitempty"`  // deviation of apical zone [cm]
	Ln   float64 `yaml:"ln"`             // internodal distance [cm]
	Lns  float64 `yaml:"lns,omitempty"`  // deviation of internodal distance [cm]
	Nob  int     `yaml:"nob"`            // number of laterals
	Nobs float64 `yaml:"nobs,omitempty"` // deviation of number of laterals
	LMax float64 `yaml:"lmax,omitempty"` // explicit maximal length [cm], 0 derives it from the zones

	R  float64 `yaml:"r"`            // initial elongation rate [cm day-1]
	Rs float64 `yaml:"rs,omitempty"` // deviation of elongation rate [cm day-1]
	A  float64 `yaml:"a,omitempty"`  // radius [cm]
	As float64 `yaml:"as,omitempty"` // deviation of radius [cm]

	Theta  float64 `yaml:"theta,omitempty"`  // insertion angle [rad]
	Thetas float64 `yaml:"thetas,omitempty"` // deviation of insertion angle [rad]
	Rlt    float64 `yaml:"rlt,omitempty"`    // life time [day], 0 is unlimited

	Dx float64 `yaml:"dx"`           // axial resolution [cm]
	Gf int     `yaml:"gf,omitempty"` // growth function, see GrowthNegExp and GrowthLinear

	Successor          []int       `yaml:"successor,omitempty"`
	SuccessorP         []float64   `yaml:"successor_p,omitempty"`
	SuccessorOrganType []OrganType `yaml:"successor_organ_type,omitempty"`
}

// Validate checks ranges, the successor table and zone consistency.
func (p *RandomParameterSet) Validate() error {
	if p.OrganType == OrganTypeAny {
		return fmt.Errorf("%w: parameter set %q has no organ type", ErrInvalidArgument, p.Name)
	}
	nonNegative := map[string]float64{
		"lb": p.Lb, "lbs": p.Lbs, "la": p.La, "las": p.Las, "ln": p.Ln, "lns": p.Lns,
		"nobs": p.Nobs, "lmax": p.LMax, "r": p.R, "rs": p.Rs, "a": p.A, "as": p.As,
		"thetas": p.Thetas, "rlt": p.Rlt,
	}
	for _, name := range sortedKeys(nonNegative) {
		if v := nonNegative[name]; v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must be non-negative, got %g", ErrInvalidArgument, name, v)
		}
	}
	if p.Nob < 0 {
		return fmt.Errorf("%w: nob must be non-negative, got %d", ErrInvalidArgument, p.Nob)
	}
	if p.Dx <= 0 {
		return fmt.Errorf("%w: dx must be positive, got %g", ErrInvalidArgument, p.Dx)
	}
	if _, err := NewGrowthFunction(p.Gf); err != nil {
		return err
	}
	if err := p.validateSuccessors(); err != nil {
		return err
	}
	if p.LMax > 0 && p.Nob > 0 {
		if need := p.La + p.Lb + float64(p.Nob-1)*p.Ln; need > p.LMax {
			return fmt.Errorf("%w: %q needs la+lb+(nob-1)*ln = %g but lmax is %g",
				ErrConsistency, p.Name, need, p.LMax)
		}
	}
	return nil
}

func (p *RandomParameterSet) validateSuccessors() error {
	if len(p.SuccessorP) != len(p.Successor) {
		return fmt.Errorf("%w: %d successors but %d successor probabilities",
			ErrInvalidArgument, len(p.Successor), len(p.SuccessorP))
	}
	if len(p.SuccessorOrganType) > 0 && len(p.SuccessorOrganType) != len(p.Successor) {
		return fmt.Errorf("%w: %d successors but %d successor organ types",
			ErrInvalidArgument, len(p.Successor), len(p.SuccessorOrganType))
	}
	if len(p.Successor) == 0 {
		return nil
	}
	for _, prob := range p.SuccessorP {
		if prob < 0 {
			return fmt.Errorf("%w: negative successor probability %g", ErrInvalidArgument, prob)
		}
	}
	if sum := floats.Sum(p.SuccessorP); math.Abs(sum-1) > successorProbTolerance {
		return fmt.Errorf("%w: successor probabilities sum to %g, want 1", ErrInvalidArgument, sum)
	}
	return nil
}

// Copy returns a deep copy.
func (p *RandomParameterSet) Copy() *RandomParameterSet {
	c := *p
	c.Successor = append([]int(nil), p.Successor...)
	c.SuccessorP = append([]float64(nil), p.SuccessorP...)
	c.SuccessorOrganType = append([]OrganType(nil), p.SuccessorOrganType...)
	return &c
}

// Realize draws one organ specific parameter set. Every stochastic field is
// sampled independently from a normal distribution truncated at zero.
// The draw only consumes rng; p is left untouched.
func (p *RandomParameterSet) Realize(rng *rand.Rand) (*RealizedParameterSet, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rp := &RealizedParameterSet{
		OrganType: p.OrganType,
		SubType:   p.SubType,
		Lb:        sampleNonNegative(rng, p.Lb, p.Lbs),
		La:        sampleNonNegative(rng, p.La, p.Las),
		R:         sampleNonNegative(rng, p.R, p.Rs),
		A:         sampleNonNegative(rng, p.A, p.As),
		Theta:     sampleNonNegative(rng, p.Theta, p.Thetas),
		Rlt:       p.Rlt,
		Dx:        p.Dx,
		LMax:      p.LMax,
		Gf:        p.Gf,
	}
	rp.Nob = int(math.Round(sampleNonNegative(rng, float64(p.Nob), p.Nobs)))
	if rp.Nob > 1 {
		rp.Ln = make([]float64, rp.Nob-1)
		for i := range rp.Ln {
			rp.Ln[i] = sampleNonNegative(rng, p.Ln, p.Lns)
		}
	}
	return rp, nil
}

// lateralType draws the subtype of a new lateral. ok is false when the
// parameter set has no successors.
func (p *RandomParameterSet) lateralType(rng *rand.Rand) (ot OrganType, subType int, ok bool) {
	if len(p.Successor) == 0 {
		return OrganTypeAny, 0, false
	}
	idx := 0
	if len(p.Successor) > 1 {
		cdf := make([]float64, len(p.SuccessorP))
		floats.CumSum(cdf, p.SuccessorP)
		cdf[len(cdf)-1] = 1.0
		idx = sort.SearchFloat64s(cdf, rng.Float64())
		if idx >= len(p.Successor) {
			idx = len(p.Successor) - 1
		}
	}
	ot = p.OrganType
	if len(p.SuccessorOrganType) > 0 {
		ot = p.SuccessorOrganType[idx]
	} else if ot == OrganTypeSeed {
		ot = OrganTypeRoot
	}
	return ot, p.Successor[idx], true
}

// Parameter returns a distribution parameter by name. Means may also be
// addressed with a "_mean" suffix and deviations with "_dev". Unknown
// names return NaN.
func (p *RandomParameterSet) Parameter(name string) float64 {
	switch name {
	case "organType":
		return float64(p.OrganType)
	case "subType":
		return float64(p.SubType)
	case "lb", "lb_mean":
		return p.Lb
	case "lb_dev":
		return p.Lbs
	case "la", "la_mean":
		return p.La
	case "la_dev":
		return p.Las
	case "ln", "ln_mean":
		return p.Ln
	case "ln_dev":
		return p.Lns
	case "nob", "nob_mean":
		return float64(p.Nob)
	case "nob_dev":
		return p.Nobs
	case "lmax":
		return p.LMax
	case "r", "r_mean":
		return p.R
	case "r_dev":
		return p.Rs
	case "a", "a_mean":
		return p.A
	case "a_dev":
		return p.As
	case "theta", "theta_mean":
		return p.Theta
	case "theta_dev":
		return p.Thetas
	case "rlt":
		return p.Rlt
	case "dx":
		return p.Dx
	case "gf":
		if p.Gf == 0 {
			return GrowthNegExp
		}
		return float64(p.Gf)
	case "k":
		if p.LMax > 0 {
			return p.LMax
		}
		if p.Nob == 0 {
			return p.La + p.Lb
		}
		return p.La + p.Lb + float64(p.Nob-1)*p.Ln
	}
	return math.NaN()
}

func (p *RandomParameterSet) String() string {
	return fmt.Sprintf("name: %s, organType: %s, subType: %d.", p.Name, p.OrganType, p.SubType)
}

// RealizedParameterSet holds the concrete parameters of a single organ.
// It is drawn once when the organ is created and never changes afterwards.
type RealizedParameterSet struct {
	OrganType OrganType
	SubType   int
	Lb        float64
	La        float64
	Ln        []float64 // internodal distances, nob-1 entries
	Nob       int
	R         float64
	A         float64
	Theta     float64
	Rlt       float64
	Dx        float64
	LMax      float64
	Gf        int
}

// K returns the maximal length: the explicit lmax if set, otherwise the sum
// of basal zone, internodal distances and apical zone.
func (rp *RealizedParameterSet) K() float64 {
	if rp.LMax > 0 {
		return rp.LMax
	}
	return rp.La + rp.Lb + floats.Sum(rp.Ln)
}

// LateralPositions returns the axial positions of the Nob lateral branching
// points, measured from the organ base.
func (rp *RealizedParameterSet) LateralPositions() []float64 {
	if rp.Nob == 0 {
		return nil
	}
	pos := make([]float64, rp.Nob)
	s := rp.Lb
	for i := range pos {
		pos[i] = s
		if i < len(rp.Ln) {
			s += rp.Ln[i]
		}
	}
	return pos
}

// Copy returns a deep copy.
func (rp *RealizedParameterSet) Copy() *RealizedParameterSet {
	c := *rp
	c.Ln = append([]float64(nil), rp.Ln...)
	return &c
}

// sampleNonNegative draws from N(mean, std) truncated at zero.
// A zero deviation returns the mean without consuming rng.
func sampleNonNegative(rng *rand.Rand, mean, std float64) float64 {
	if std == 0 {
		return math.Max(0, mean)
	}
	return math.Max(0, rng.NormFloat64()*std+mean)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
