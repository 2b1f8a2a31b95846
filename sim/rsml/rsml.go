// Package rsml turns measured root architectures into length/time
// observation tables for calibration.
//
// A Plant is a set of polylines as stored in an RSML file at its final
// measurement. Each polyline knows its parent polyline and may carry a
// per-node emergence time, which allows reconstructing earlier
// measurement times by truncation.
package rsml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/organsim/organsim/sim/calibrate"
)

// EmergenceTimeFunction is the RSML function holding per-node emergence times.
const EmergenceTimeFunction = "emergence_time"

// ErrInvalidPlant indicates inconsistent polyline data.
var ErrInvalidPlant = errors.New("rsml: invalid plant")

// Polyline is one measured root axis, base node first.
type Polyline struct {
	ID    string
	Nodes []r3.Vec
	// ParentPoly is the index of the parent polyline, -1 for base roots.
	ParentPoly int
	// EmergenceTimes has one entry per node or is empty.
	EmergenceTimes []float64
}

// Plant is one measured root system.
type Plant struct {
	Name      string
	Polylines []Polyline
}

// Length is the polyline length.
func (p *Polyline) Length() float64 {
	l := 0.0
	for i := 1; i < len(p.Nodes); i++ {
		l += r3.Norm(r3.Sub(p.Nodes[i], p.Nodes[i-1]))
	}
	return l
}

// Validate checks parent indices and emergence time counts.
func (pl *Plant) Validate() error {
	for i, p := range pl.Polylines {
		if p.ParentPoly < -1 || p.ParentPoly >= len(pl.Polylines) || p.ParentPoly == i {
			return fmt.Errorf("%w: %s polyline %d has parent %d", ErrInvalidPlant, pl.Name, i, p.ParentPoly)
		}
		if n := len(p.EmergenceTimes); n != 0 && n != len(p.Nodes) {
			return fmt.Errorf("%w: %s polyline %d has %d nodes but %d emergence times",
				ErrInvalidPlant, pl.Name, i, len(p.Nodes), n)
		}
	}
	_, err := pl.Orders()
	return err
}

// HasEmergenceTimes reports whether every polyline carries emergence times.
func (pl *Plant) HasEmergenceTimes() bool {
	for _, p := range pl.Polylines {
		if len(p.EmergenceTimes) == 0 {
			return false
		}
	}
	return len(pl.Polylines) > 0
}

// Orders tags every polyline with its branching order: 0 for base roots,
// parent order + 1 otherwise.
func (pl *Plant) Orders() ([]int, error) {
	orders := make([]int, len(pl.Polylines))
	for i := range pl.Polylines {
		o, j := 0, pl.Polylines[i].ParentPoly
		for ; j >= 0; j = pl.Polylines[j].ParentPoly {
			o++
			if o > len(pl.Polylines) {
				return nil, fmt.Errorf("%w: %s has a parent cycle at polyline %d", ErrInvalidPlant, pl.Name, i)
			}
		}
		orders[i] = o
	}
	return orders, nil
}

// Truncate returns the plant as it was at time t: every polyline keeps the
// nodes that emerged by t. Polylines keep their indices; those without a
// node at t are left empty.
func (pl *Plant) Truncate(t float64) Plant {
	out := Plant{Name: pl.Name, Polylines: make([]Polyline, len(pl.Polylines))}
	for i, p := range pl.Polylines {
		n := 0
		for n < len(p.EmergenceTimes) && p.EmergenceTimes[n] <= t {
			n++
		}
		out.Polylines[i] = Polyline{
			ID:             p.ID,
			ParentPoly:     p.ParentPoly,
			Nodes:          append([]r3.Vec(nil), p.Nodes[:n]...),
			EmergenceTimes: append([]float64(nil), p.EmergenceTimes[:n]...),
		}
	}
	return out
}

// BaseRoots returns the order 0 polylines in file order.
func (pl *Plant) BaseRoots() ([]Polyline, error) {
	orders, err := pl.Orders()
	if err != nil {
		return nil, err
	}
	var base []Polyline
	for i, o := range orders {
		if o == 0 {
			base = append(base, pl.Polylines[i])
		}
	}
	return base, nil
}

// ToLengthTimeTable builds an observation table with one subject per plant
// and one row per time. A cell is the length of the plant's first base
// root truncated to that time. Plants without emergence times only fill
// the last row, which is taken to be the time of the measurement itself.
func ToLengthTimeTable(plants []Plant, times []float64) (*calibrate.Table, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: no measurement times", calibrate.ErrInvalidTable)
	}
	subjects := make([]string, len(plants))
	for i, pl := range plants {
		subjects[i] = pl.Name
		if subjects[i] == "" {
			subjects[i] = fmt.Sprintf("plant%d", i+1)
		}
	}
	tab := calibrate.NewTable(times, subjects)
	last := len(times) - 1
	for j := range plants {
		pl := &plants[j]
		if err := pl.Validate(); err != nil {
			return nil, err
		}
		full := pl.HasEmergenceTimes()
		for i, t := range times {
			if !full && i != last {
				continue
			}
			snapshot := *pl
			if full {
				snapshot = pl.Truncate(t)
			}
			tab.Lengths[i][j] = firstBaseRootLength(&snapshot)
		}
	}
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	return tab, nil
}

func firstBaseRootLength(pl *Plant) float64 {
	base, err := pl.BaseRoots()
	if err != nil || len(base) == 0 {
		return math.NaN()
	}
	return base[0].Length()
}
