package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/organsim/organsim/sim/calibrate"
	"github.com/organsim/organsim/sim/plot"
	"github.com/organsim/organsim/sim/rsml"
)

// calibrateOptions mirrors the calibrate command's flags.
type calibrateOptions struct {
	observations string
	times        []float64 // RSML only
	k0           float64
	chart        string
	maxIter      int
}

var calibrateOpts calibrateOptions

// calibrateCmd fits the growth law to measured lengths
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit elongation rate and maximal length to measured root lengths",
	Long: "Fit the negative exponential growth law to a length-time table (CSV with a leading time column) " +
		"or to RSML files with emergence times. Three policies are run: the first time point only with k fixed, " +
		"all time points with k fixed, and r and k jointly.",
	Run: func(cmd *cobra.Command, args []string) {
		if calibrateOpts.observations == "" {
			logrus.Fatalf("Observation file not provided.")
		}
		if err := calibrateObservations(cmd.Context(), cmd.OutOrStdout(), calibrateOpts); err != nil {
			logrus.Fatalf("Calibration failed: %v", err)
		}
	},
}

// loadObservations reads a CSV table, or converts RSML plants sampled at times.
func loadObservations(path string, times []float64) (*calibrate.Table, error) {
	if !strings.EqualFold(filepath.Ext(path), ".rsml") {
		return calibrate.LoadTable(path)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: RSML observations need --times", calibrate.ErrInvalidTable)
	}
	plants, err := rsml.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rsml.ToLengthTimeTable(plants, times)
}

func calibrateObservations(ctx context.Context, w io.Writer, opts calibrateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tab, err := loadObservations(opts.observations, opts.times)
	if err != nil {
		return err
	}
	c := calibrate.NewCalibrator(calibrate.Options{MaxIterations: opts.maxIter})
	results, err := c.FitAll(ctx, tab, opts.k0)
	if err != nil {
		return err
	}
	for _, res := range results.All() {
		fmt.Fprintln(w, res)
		comp, err := calibrate.Compare(tab, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  mean observed %.4g cm, mean fitted %.4g cm, RMSE %.3g cm, max error %.3g cm\n",
			comp.ObservedMean, comp.FitMean, comp.RMSE, comp.MaxAbsError)
		fmt.Fprintf(w, "  MAPE %.2f%%, r %.3f, %s, quality %s\n",
			100*comp.MAPE, comp.PearsonR, comp.BiasDirection, comp.Quality)
	}
	if opts.chart != "" {
		if err := plot.SaveFitChart(opts.chart, tab, results.All()); err != nil {
			return err
		}
		logrus.Infof("Fit chart written to %s", opts.chart)
	}
	return nil
}

func init() {
	calibrateCmd.Flags().StringVar(&calibrateOpts.observations, "observations", "", "Length-time CSV or RSML file")
	calibrateCmd.Flags().Float64SliceVar(&calibrateOpts.times, "times", nil, "Comma-separated sampling times for RSML input [day]")
	calibrateCmd.Flags().Float64Var(&calibrateOpts.k0, "k0", 50, "Fixed maximal length and joint fit starting point [cm]")
	calibrateCmd.Flags().StringVar(&calibrateOpts.chart, "chart", "", "Write a PNG chart of the fits to this file")
	calibrateCmd.Flags().IntVar(&calibrateOpts.maxIter, "max-iterations", calibrate.DefaultOptions().MaxIterations, "Solver iteration budget per policy")
}
