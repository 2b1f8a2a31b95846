// Package plot renders simulation and calibration results, as ASCII for
// the terminal and as PNG charts.
package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/guptarohit/asciigraph"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/organsim/organsim/sim/calibrate"
)

// curveSamples is the number of points drawn per fitted curve.
const curveSamples = 200

var fitColors = []drawing.Color{
	{R: 0, G: 116, B: 217, A: 255},
	chart.ColorGreen,
	chart.ColorRed,
	{R: 255, G: 165, B: 0, A: 255},
}

// LengthSeries renders values sampled at times as an ASCII line chart.
// An empty series renders as the empty string.
func LengthSeries(caption string, times, values []float64) string {
	if len(values) == 0 {
		return ""
	}
	if len(times) == len(values) && len(times) > 1 {
		caption = fmt.Sprintf("%s (t = %g .. %g)", caption, times[0], times[len(times)-1])
	}
	return asciigraph.Plot(values,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

// WriteFitChart renders the measured lengths of tab as points and every
// fitted growth curve from t = 0 to the last measurement as a PNG.
func WriteFitChart(w io.Writer, tab *calibrate.Table, results []*calibrate.Result) error {
	ts, ls := tab.Observations(0)
	if len(ts) == 0 {
		return calibrate.ErrNoObservations
	}
	tMax := tab.Times[len(tab.Times)-1]
	yMax := 0.0
	for _, l := range ls {
		yMax = math.Max(yMax, l)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "observed",
			XValues: ts,
			YValues: ls,
			Style: chart.Style{
				StrokeColor: drawing.ColorTransparent,
				DotWidth:    4,
				DotColor:    drawing.ColorBlack,
			},
		},
	}
	for i, res := range results {
		xs := make([]float64, curveSamples)
		ys := make([]float64, curveSamples)
		for j := range xs {
			xs[j] = tMax * float64(j) / float64(curveSamples-1)
			ys[j] = res.Length(xs[j])
			yMax = math.Max(yMax, ys[j])
		}
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("%s (r=%.3g, k=%.3g)", res.Policy, res.R, res.K),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: fitColors[i%len(fitColors)],
				StrokeWidth: 2.0,
			},
		})
	}

	graph := chart.Chart{
		Width:  800,
		Height: 500,
		XAxis: chart.XAxis{
			Name:  "Time [days]",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: tMax},
		},
		YAxis: chart.YAxis{
			Name:  "Length [cm]",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: 1.05 * yMax},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// SaveFitChart writes WriteFitChart's PNG to path.
func SaveFitChart(path string, tab *calibrate.Table, results []*calibrate.Result) error {
	var buf bytes.Buffer
	if err := WriteFitChart(&buf, tab, results); err != nil {
		return fmt.Errorf("rendering fit chart: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("saving fit chart: %w", err)
	}
	return nil
}
