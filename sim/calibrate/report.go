package calibrate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricComparison holds the statistical comparison between observed
// lengths and the lengths predicted by a fit.
type MetricComparison struct {
	Policy        Policy
	ObservedMean  float64 // [cm]
	FitMean       float64 // [cm]
	RMSE          float64 // root mean squared residual [cm]
	MaxAbsError   float64 // largest absolute residual [cm]
	MAPE          float64 // mean relative error over positive observations
	PearsonR      float64
	BiasDirection string // "over-predict", "under-predict", "neutral"
	Quality       string // "excellent", "good", "fair", "poor"
	Count         int
}

// qualityBands are checked in order; a fit below all of them is "poor".
var qualityBands = []struct {
	maxMAPE, minR float64
	label         string
}{
	{0.10, 0.95, "excellent"},
	{0.20, 0.85, "good"},
	{0.35, 0.70, "fair"},
}

// Compare evaluates result against every measured cell of tab.
func Compare(tab *Table, result *Result) (*MetricComparison, error) {
	ts, observed := tab.Observations(0)
	if len(ts) == 0 {
		return nil, ErrNoObservations
	}
	predicted := make([]float64, len(ts))
	for i, t := range ts {
		predicted[i] = result.Length(t)
	}
	comp, err := ComputeComparison(observed, predicted)
	if err != nil {
		return nil, err
	}
	comp.Policy = result.Policy
	return comp, nil
}

// ComputeComparison compares observed and predicted lengths pairwise.
// Relative errors and the bias skip zero observations.
func ComputeComparison(observed, predicted []float64) (*MetricComparison, error) {
	n := len(observed)
	if n == 0 || len(predicted) == 0 {
		return nil, fmt.Errorf("%w: empty vectors", ErrNoObservations)
	}
	if n != len(predicted) {
		return nil, fmt.Errorf("%w: %d observed but %d predicted lengths", ErrInvalidTable, n, len(predicted))
	}

	residuals := make([]float64, n)
	floats.SubTo(residuals, predicted, observed)
	comp := &MetricComparison{
		Count:        n,
		ObservedMean: stat.Mean(observed, nil),
		FitMean:      stat.Mean(predicted, nil),
		RMSE:         floats.Norm(residuals, 2) / math.Sqrt(float64(n)),
		MaxAbsError:  floats.Norm(residuals, math.Inf(1)),
	}

	var relative []float64
	bias := 0.0
	for i, o := range observed {
		if o <= 0 {
			continue
		}
		relative = append(relative, math.Abs(residuals[i])/o)
		bias += residuals[i]
	}
	if len(relative) > 0 {
		comp.MAPE = stat.Mean(relative, nil)
		comp.BiasDirection = biasDirection(bias)
	}
	if n >= 3 {
		if r := stat.Correlation(observed, predicted, nil); !math.IsNaN(r) {
			comp.PearsonR = r
		}
	}
	comp.Quality = qualityRating(comp.MAPE, comp.PearsonR)
	return comp, nil
}

func biasDirection(bias float64) string {
	switch {
	case bias > 0:
		return "over-predict"
	case bias < 0:
		return "under-predict"
	}
	return "neutral"
}

func qualityRating(mape, pearsonR float64) string {
	for _, b := range qualityBands {
		if mape < b.maxMAPE && pearsonR > b.minR {
			return b.label
		}
	}
	return "poor"
}
