package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/organsim/organsim/sim/trace"
)

const (
	// shiftThreshold: a tip segment shorter than shiftThreshold*dx is
	// lengthened by moving the tip node instead of appending a new node.
	shiftThreshold = 0.99
	// smallDx is the shortest final segment that is materialized.
	smallDx = 1e-10
	// maturityTolerance, relative to dx, below which an organ counts as fully grown.
	maturityTolerance = 1e-6
)

// Node is a point of an organ's axis together with the absolute time at
// which it was created.
type Node struct {
	Pos          r3.Vec
	CreationTime float64
}

// Organ is a single axis: a root, a stem, a leaf or a seed anchor.
//
// Lifecycle: growing → mature (length within tolerance of K) ; an organ
// with a life time additionally stops aging once it dies. Organs are never
// removed from the tree.
//
// An Organ owns its parameters, nodes and children. The parent pointer is a
// plain back-reference. Organs are not safe for concurrent use; Copy the
// organism to explore scenarios in parallel.
type Organ struct {
	id       int
	organism *Organism
	parent   *Organ
	param    *RealizedParameterSet
	growth   GrowthFunction
	children []*Organ
	nodes    []Node
	heading  r3.Vec
	parentNI int // parent node index of the base node, -1 for base organs

	age          float64
	creationTime float64
	length       float64 // axial length of the materialized nodes
	alive        bool
	active       bool
	moved        bool
	oldNON       int

	anchors   []int // node index of each materialized lateral position
	processed int   // number of lateral positions whose emergence was decided
}

// Simulate advances the organ and its subtree by dt days.
//
// The organ elongates to the length given by its growth law, materializes
// new nodes at axial resolution dx, creates laterals whose emergence falls
// into the step (each simulated for the remainder of the step), and finally
// simulates the children that existed before the step by the full dt.
//
// A zero dt is a no-op; a negative dt fails with ErrInvalidArgument.
func (o *Organ) Simulate(dt float64) error {
	if dt < 0 || math.IsNaN(dt) {
		return fmt.Errorf("%w: time step must be non-negative, got %g", ErrInvalidArgument, dt)
	}
	if dt == 0 {
		return nil
	}
	o.moved = false
	o.oldNON = len(o.nodes)
	existing := len(o.children)

	if o.alive {
		if err := o.grow(dt); err != nil {
			return err
		}
	}
	for _, c := range o.children[:existing] {
		if err := c.Simulate(dt); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organ) grow(dt float64) error {
	p := o.param
	if p.Rlt > 0 && o.age+dt >= p.Rlt {
		dt = math.Max(p.Rlt-o.age, 0)
		o.alive = false
	}
	oldAge, oldLength := o.age, o.length
	o.age += dt

	if o.active {
		target := o.growth.Length(o.age, p.R, p.K())
		if target > o.length {
			o.elongate(target)
		}
		o.active = p.K()-o.length > o.tolerance()
	}
	return o.emergeLaterals(oldAge, oldLength)
}

// elongate grows the axis to target, splitting the new length at lateral
// positions so that every branching point carries its own node.
func (o *Organ) elongate(target float64) {
	pos := o.param.LateralPositions()
	for o.length < target {
		end := target
		if i := len(o.anchors); i < len(pos) && pos[i] < end {
			end = pos[i]
		}
		o.createSegments(end - o.length)
		o.length = end
		o.markAnchors(pos)
	}
}

func (o *Organ) markAnchors(pos []float64) {
	for len(o.anchors) < len(pos) && pos[len(o.anchors)] <= o.length {
		o.anchors = append(o.anchors, len(o.nodes)-1)
	}
}

func (o *Organ) isAnchor(ni int) bool {
	for _, a := range o.anchors {
		if a == ni {
			return true
		}
	}
	return false
}

// createSegments adds l to the axis. A short tip segment is first filled
// up to dx by moving the tip node; the rest is appended as segments of dx
// and one shorter final segment. Nodes at lateral positions never move.
func (o *Organ) createSegments(l float64) {
	if l <= 0 {
		return
	}
	dx := o.param.Dx

	shift := 0.0
	nn := len(o.nodes)
	if nn > 1 && !o.isAnchor(nn-1) {
		n2, n1 := o.nodes[nn-2].Pos, o.nodes[nn-1].Pos
		olddx := r3.Norm(r3.Sub(n1, n2))
		if olddx < shiftThreshold*dx {
			shift = math.Min(dx-olddx, l)
			o.nodes[nn-1] = Node{
				Pos:          r3.Add(n2, r3.Scale(olddx+shift, o.heading)),
				CreationTime: o.creationTimeAt(o.length + shift),
			}
			o.moved = true
			l -= shift
			if l <= 0 {
				return
			}
		}
	}

	n := int(math.Floor(l / dx))
	sl := 0.0
	for i := 0; i <= n; i++ {
		sdx := dx
		if i == n {
			sdx = l - float64(n)*dx
			if sdx < smallDx {
				return
			}
		}
		sl += sdx
		tip := o.nodes[len(o.nodes)-1].Pos
		o.nodes = append(o.nodes, Node{
			Pos:          r3.Add(tip, r3.Scale(sdx, o.heading)),
			CreationTime: o.creationTimeAt(o.length + shift + sl),
		})
	}
}

// creationTimeAt returns the absolute time at which the axis reached length l.
func (o *Organ) creationTimeAt(l float64) float64 {
	a, err := o.growth.Age(l, o.param.R, o.param.K())
	if err != nil || a > o.age {
		a = o.age
	}
	return o.creationTime + a
}

func (o *Organ) tolerance() float64 {
	return maturityTolerance * o.param.Dx
}

// emergeLaterals creates the laterals whose emergence age was passed in
// this step. A lateral emerges when the axis has grown la beyond its
// branching point, i.e. once the apical zone lies behind it.
func (o *Organ) emergeLaterals(oldAge, oldLength float64) error {
	pos := o.param.LateralPositions()
	for o.processed < len(o.anchors) {
		i := o.processed
		at, ok := o.emergenceAge(pos[i]+o.param.La, oldAge, oldLength)
		if !ok {
			break
		}
		o.processed++
		if err := o.createLateral(i, pos[i], at); err != nil {
			return err
		}
	}
	return nil
}

// emergenceAge returns the organ age at which its length reaches l, if that
// happened by the current age. Lengths at the asymptote count as reached
// once the organ has converged onto them.
func (o *Organ) emergenceAge(l, oldAge, oldLength float64) (float64, bool) {
	a, err := o.growth.Age(l, o.param.R, o.param.K())
	if err != nil {
		switch tol := o.tolerance(); {
		case oldLength >= l-tol:
			return oldAge, true
		case o.length >= l-tol:
			return o.age, true
		}
		return 0, false
	}
	if a > o.age {
		return 0, false
	}
	return math.Max(a, oldAge), true
}

func (o *Organ) createLateral(i int, position, emergence float64) error {
	org := o.organism
	rp, err := org.OrganRandomParameter(o.param.OrganType, o.param.SubType)
	if err != nil {
		return err
	}
	record := trace.LateralRecord{
		ParentID:     o.id,
		ChildID:      -1,
		LateralIndex: i,
		Position:     position,
		Time:         o.creationTime + emergence,
	}
	ot, subType, ok := rp.lateralType(org.rng.ForSubsystem(SubsystemBranching))
	if !ok {
		record.Reason = "no-successor"
		org.recordLateral(record)
		return nil
	}

	ni := o.anchors[i]
	child, err := org.newOrgan(ot, subType, o, o.nodes[ni].Pos, o.heading, record.Time, ni)
	if err != nil {
		return fmt.Errorf("lateral %d of organ %d: %w", i, o.id, err)
	}
	o.children = append(o.children, child)

	record.ChildID = child.id
	record.OrganType = ot.String()
	record.SubType = subType
	record.Emerged = true
	record.Reason = "emerged"
	org.recordLateral(record)
	logrus.Debugf("organ %d: lateral %d (%s, subtype %d) emerged at t=%.4f", o.id, child.id, ot, subType, record.Time)

	return child.Simulate(o.age - emergence)
}

// lateralHeading rotates the parent heading by the insertion angle theta
// and then by the azimuth beta around the parent heading.
func lateralHeading(parent r3.Vec, theta, beta float64) r3.Vec {
	ref := r3.Vec{Z: 1}
	if math.Abs(r3.Dot(r3.Unit(parent), ref)) > 0.99 {
		ref = r3.Vec{X: 1}
	}
	axis := r3.Unit(r3.Cross(parent, ref))
	h := r3.NewRotation(theta, axis).Rotate(parent)
	return r3.Unit(r3.NewRotation(beta, parent).Rotate(h))
}

// copy deep copies the subtree into org with the given parent.
func (o *Organ) copy(org *Organism, parent *Organ) *Organ {
	c := *o
	c.organism = org
	c.parent = parent
	c.param = o.param.Copy()
	c.nodes = append([]Node(nil), o.nodes...)
	c.anchors = append([]int(nil), o.anchors...)
	c.children = make([]*Organ, len(o.children))
	for i, ch := range o.children {
		c.children[i] = ch.copy(org, &c)
	}
	return &c
}

// Organs returns the subtree as a pre-order sequence (parent before
// children, children in creation order). Only organs of type ot (or any
// type for OrganTypeAny) with at least one segment are included.
func (o *Organ) Organs(ot OrganType) []*Organ {
	var v []*Organ
	o.collect(ot, &v)
	return v
}

func (o *Organ) collect(ot OrganType, v *[]*Organ) {
	if len(o.nodes) > 1 && (ot == OrganTypeAny || ot == o.param.OrganType) {
		*v = append(*v, o)
	}
	for _, c := range o.children {
		c.collect(ot, v)
	}
}

// ID is unique within the organism, in creation order.
func (o *Organ) ID() int { return o.id }

// Parent is nil for base organs.
func (o *Organ) Parent() *Organ { return o.parent }

func (o *Organ) OrganType() OrganType { return o.param.OrganType }
func (o *Organ) SubType() int         { return o.param.SubType }

// Age is the time the organ has grown [day]. It stops at the life time.
func (o *Organ) Age() float64 { return o.age }

// CreationTime is the absolute simulation time of emergence [day].
func (o *Organ) CreationTime() float64 { return o.creationTime }

// Length is the axial length of the materialized nodes [cm].
func (o *Organ) Length() float64 { return o.length }

// IsAlive is false once the organ exceeded its life time.
func (o *Organ) IsAlive() bool { return o.alive }

// IsActive is false once the organ is fully grown.
func (o *Organ) IsActive() bool { return o.active }

// HasMoved reports whether the last Simulate relocated the tip node that
// existed before the step. It stays true when the same step also appended
// nodes behind the relocated tip, so consumers re-read from
// OldNumberOfNodes()-1 whenever it is set.
func (o *Organ) HasMoved() bool { return o.moved }

// Heading is the unit growth direction of the axis.
func (o *Organ) Heading() r3.Vec { return o.heading }

func (o *Organ) NumberOfNodes() int { return len(o.nodes) }

// OldNumberOfNodes is the node count before the last Simulate.
func (o *Organ) OldNumberOfNodes() int { return o.oldNON }

// ParentNodeIndex is the parent node the organ emerged from, -1 for base organs.
func (o *Organ) ParentNodeIndex() int { return o.parentNI }

func (o *Organ) Node(i int) Node       { return o.nodes[i] }
func (o *Organ) NumberOfChildren() int { return len(o.children) }
func (o *Organ) Child(i int) *Organ    { return o.children[i] }

// Organism is the owner of the organ's tree and parameter registry.
func (o *Organ) Organism() *Organism { return o.organism }

// Param returns a copy of the organ's realized parameters.
func (o *Organ) Param() *RealizedParameterSet { return o.param.Copy() }

// Nodes returns a copy of the axis nodes, base first.
func (o *Organ) Nodes() []Node {
	return append([]Node(nil), o.nodes...)
}

// Order is the number of non-seed organs from this organ up to the base.
func (o *Organ) Order() int {
	c := 0
	for p := o; p != nil && p.param.OrganType != OrganTypeSeed; p = p.parent {
		c++
	}
	return c
}

// SegmentLengths returns the distances between consecutive nodes.
func (o *Organ) SegmentLengths() []float64 {
	if len(o.nodes) < 2 {
		return nil
	}
	s := make([]float64, len(o.nodes)-1)
	for i := range s {
		s[i] = r3.Norm(r3.Sub(o.nodes[i+1].Pos, o.nodes[i].Pos))
	}
	return s
}

// GeometricLength is the polyline length of the node chain.
func (o *Organ) GeometricLength() float64 {
	l := 0.0
	for _, s := range o.SegmentLengths() {
		l += s
	}
	return l
}

// Parameter returns a scalar by name, for plotting and aggregate
// statistics. Unknown names return NaN.
func (o *Organ) Parameter(name string) float64 {
	p := o.param
	switch name {
	case "length":
		return o.length
	case "age":
		return o.age
	case "creationTime":
		return o.creationTime
	case "radius", "a":
		return p.A
	case "order":
		return float64(o.Order())
	case "subType", "type":
		return float64(p.SubType)
	case "organType":
		return float64(p.OrganType)
	case "id":
		return float64(o.id)
	case "numberOfNodes":
		return float64(len(o.nodes))
	case "parentNI":
		return float64(o.parentNI)
	case "alive":
		return boolToFloat(o.alive)
	case "active":
		return boolToFloat(o.active)
	case "lb":
		return p.Lb
	case "la":
		return p.La
	case "r":
		return p.R
	case "k":
		return p.K()
	case "theta":
		return p.Theta
	case "nob":
		return float64(p.Nob)
	case "dx":
		return p.Dx
	case "rlt":
		return p.Rlt
	case "volume":
		return p.A * p.A * math.Pi * o.length
	case "surface":
		return 2 * p.A * math.Pi * o.length
	}
	return math.NaN()
}

func (o *Organ) String() string {
	return fmt.Sprintf("Organ #%d: %s subtype %d, length: %g, age: %g with %d successors",
		o.id, o.param.OrganType, o.param.SubType, o.length, o.age, len(o.children))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
