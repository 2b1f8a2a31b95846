package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/organsim/organsim/sim/trace"
)

type paramKey struct {
	organType OrganType
	subType   int
}

// Organism is the whole organ tree together with its parameter registry
// and random number streams.
//
// The registry maps (organ type, subtype) to the RandomParameterSet new
// organs are realized from. Replacing a set affects organs created later
// only. All randomness flows through one PartitionedRNG, so two organisms
// with the same seed, parameters and call sequence grow identical trees.
type Organism struct {
	params  map[paramKey]*RandomParameterSet
	bases   []*Organ
	rng     *PartitionedRNG
	trace   *trace.SimulationTrace
	simTime float64
	organID int
}

// NewOrganism creates an empty organism seeded with seed.
func NewOrganism(seed int64) *Organism {
	return &Organism{
		params: make(map[paramKey]*RandomParameterSet),
		rng:    NewPartitionedRNG(NewSimulationKey(seed)),
	}
}

// SetOrganRandomParameter validates p and registers a copy of it under its
// organ type and subtype, replacing any earlier set.
func (org *Organism) SetOrganRandomParameter(p *RandomParameterSet) error {
	if err := p.Validate(); err != nil {
		return err
	}
	org.params[paramKey{p.OrganType, p.SubType}] = p.Copy()
	return nil
}

// OrganRandomParameter returns the set registered for (ot, subType).
func (org *Organism) OrganRandomParameter(ot OrganType, subType int) (*RandomParameterSet, error) {
	p, ok := org.params[paramKey{ot, subType}]
	if !ok {
		return nil, fmt.Errorf("%w: no parameter set for %s subtype %d", ErrInvalidArgument, ot, subType)
	}
	return p, nil
}

// OrganRandomParameters returns all registered sets ordered by organ type
// and subtype.
func (org *Organism) OrganRandomParameters() []*RandomParameterSet {
	v := make([]*RandomParameterSet, 0, len(org.params))
	for _, p := range org.params {
		v = append(v, p)
	}
	sort.Slice(v, func(i, j int) bool {
		if v[i].OrganType != v[j].OrganType {
			return v[i].OrganType < v[j].OrganType
		}
		return v[i].SubType < v[j].SubType
	})
	return v
}

// Realize draws organ specific parameters for (ot, subType) from the
// realization stream.
func (org *Organism) Realize(ot OrganType, subType int) (*RealizedParameterSet, error) {
	p, err := org.OrganRandomParameter(ot, subType)
	if err != nil {
		return nil, err
	}
	return p.Realize(org.rng.ForSubsystem(SubsystemRealize))
}

// AddBase creates a new base organ at origin growing along heading. Its
// creation time is the current simulation time.
func (org *Organism) AddBase(ot OrganType, subType int, origin, heading r3.Vec) (*Organ, error) {
	if n := r3.Norm(heading); n == 0 || math.IsNaN(n) {
		return nil, fmt.Errorf("%w: base heading must be a non-zero vector", ErrInvalidArgument)
	}
	o, err := org.newOrgan(ot, subType, nil, origin, r3.Unit(heading), org.simTime, -1)
	if err != nil {
		return nil, err
	}
	org.bases = append(org.bases, o)
	logrus.Debugf("organism: added base organ %d (%s, subtype %d)", o.id, ot, subType)
	return o, nil
}

// newOrgan realizes parameters and creates an organ with a single base
// node. Laterals derive their heading from the parent heading.
func (org *Organism) newOrgan(ot OrganType, subType int, parent *Organ, origin, heading r3.Vec, creationTime float64, parentNI int) (*Organ, error) {
	rp, err := org.Realize(ot, subType)
	if err != nil {
		return nil, err
	}
	growth, err := NewGrowthFunction(rp.Gf)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		beta := 2 * math.Pi * org.rng.ForSubsystem(SubsystemBranching).Float64()
		heading = lateralHeading(heading, rp.Theta, beta)
	}
	o := &Organ{
		id:           org.organID,
		organism:     org,
		parent:       parent,
		param:        rp,
		growth:       growth,
		nodes:        []Node{{Pos: origin, CreationTime: creationTime}},
		heading:      heading,
		parentNI:     parentNI,
		creationTime: creationTime,
		alive:        true,
		oldNON:       1,
	}
	org.organID++
	o.active = rp.K()-o.length > o.tolerance()
	o.markAnchors(rp.LateralPositions())
	return o, nil
}

// Simulate advances every base organ, and thereby the whole tree, by dt days.
func (org *Organism) Simulate(dt float64) error {
	if dt < 0 || math.IsNaN(dt) {
		return fmt.Errorf("%w: time step must be non-negative, got %g", ErrInvalidArgument, dt)
	}
	if dt == 0 {
		return nil
	}
	for _, b := range org.bases {
		if err := b.Simulate(dt); err != nil {
			return err
		}
	}
	org.simTime += dt
	logrus.Debugf("organism: simulated to t=%.4f, %d organs", org.simTime, org.organID)
	return nil
}

// Organs returns all organs of type ot (OrganTypeAny for all) with at least
// one segment, base organs in insertion order, each subtree in pre-order.
func (org *Organism) Organs(ot OrganType) []*Organ {
	var v []*Organ
	for _, b := range org.bases {
		b.collect(ot, &v)
	}
	return v
}

// BaseOrgans returns the organs added with AddBase.
func (org *Organism) BaseOrgans() []*Organ {
	return append([]*Organ(nil), org.bases...)
}

// SimTime is the total time simulated so far.
func (org *Organism) SimTime() float64 { return org.simTime }

// NumberOfOrgans counts every organ created, including organs without segments.
func (org *Organism) NumberOfOrgans() int { return org.organID }

// RNG exposes the random streams, e.g. for Key.
func (org *Organism) RNG() *PartitionedRNG { return org.rng }

// EnableTrace starts recording branching decisions at the given level.
func (org *Organism) EnableTrace(level trace.TraceLevel) {
	org.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: level})
}

// Trace returns the recorded branching decisions, nil if tracing is off.
func (org *Organism) Trace() *trace.SimulationTrace { return org.trace }

func (org *Organism) recordLateral(r trace.LateralRecord) {
	if org.trace.Enabled() {
		org.trace.RecordLateral(r)
	}
}

// Copy returns a deep, fully independent copy: registry, organ tree, trace
// and random stream positions. Simulating the copy leaves org untouched and
// the copy continues exactly as org would.
func (org *Organism) Copy() *Organism {
	c := &Organism{
		params:  make(map[paramKey]*RandomParameterSet, len(org.params)),
		rng:     org.rng.Clone(),
		trace:   org.trace.Copy(),
		simTime: org.simTime,
		organID: org.organID,
	}
	for k, p := range org.params {
		c.params[k] = p.Copy()
	}
	c.bases = make([]*Organ, len(org.bases))
	for i, b := range org.bases {
		c.bases[i] = b.copy(c, nil)
	}
	return c
}
