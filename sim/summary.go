package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the organs of one organism at one simulation time.
type Summary struct {
	Time          float64
	Organs        int
	TotalLength   float64
	MeanLength    float64
	MaxOrder      int
	TotalNodes    int
	OrgansByType  map[string]int
	LengthByOrder map[int]float64
}

// ParameterValues collects Organ.Parameter(name) for every organ.
func ParameterValues(organs []*Organ, name string) []float64 {
	v := make([]float64, len(organs))
	for i, o := range organs {
		v[i] = o.Parameter(name)
	}
	return v
}

// SumParameter sums a named organ parameter, NaN for unknown names.
func SumParameter(organs []*Organ, name string) float64 {
	return floats.Sum(ParameterValues(organs, name))
}

// MeanParameter averages a named organ parameter. An empty organ list
// yields NaN.
func MeanParameter(organs []*Organ, name string) float64 {
	if len(organs) == 0 {
		return math.NaN()
	}
	return stat.Mean(ParameterValues(organs, name), nil)
}

// Summarize computes a Summary of the organism's organs.
func Summarize(org *Organism) Summary {
	organs := org.Organs(OrganTypeAny)
	s := Summary{
		Time:          org.SimTime(),
		Organs:        len(organs),
		OrgansByType:  make(map[string]int),
		LengthByOrder: make(map[int]float64),
	}
	if len(organs) == 0 {
		return s
	}
	lengths := ParameterValues(organs, "length")
	s.TotalLength = floats.Sum(lengths)
	s.MeanLength = stat.Mean(lengths, nil)
	for i, o := range organs {
		s.TotalNodes += o.NumberOfNodes()
		s.OrgansByType[o.OrganType().String()]++
		order := o.Order()
		s.LengthByOrder[order] += lengths[i]
		if order > s.MaxOrder {
			s.MaxOrder = order
		}
	}
	return s
}
