package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/organsim/organsim/sim"
	"github.com/organsim/organsim/sim/plot"
	"github.com/organsim/organsim/sim/store"
	"github.com/organsim/organsim/sim/trace"
)

// runOptions mirrors the run command's flags.
type runOptions struct {
	scenario string
	db       string
	plot     bool
	trace    bool
}

var runOpts runOptions

// runCmd simulates a scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate organ growth as described by a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		if runOpts.scenario == "" {
			logrus.Fatalf("Scenario file not provided. Exiting simulation.")
		}
		startTime := time.Now()
		if err := runScenario(cmd.Context(), cmd.OutOrStdout(), runOpts); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// runScenario loads and simulates a scenario, printing one summary line per
// output time. Snapshots go to the SQLite file opts.db when set.
func runScenario(ctx context.Context, w io.Writer, opts runOptions) (retErr error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sc, err := sim.LoadScenario(opts.scenario)
	if err != nil {
		return err
	}
	if opts.trace {
		sc.Trace = string(trace.TraceLevelLaterals)
	}
	org, err := sc.Build()
	if err != nil {
		return err
	}
	logrus.Infof("Starting simulation with seed %d, dt=%g, output times %v", sc.Seed, sc.Dt, sc.OutputTimes)

	var db *store.Store
	var runID int64
	if opts.db != "" {
		db, err = store.Open(opts.db)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil && retErr == nil {
				retErr = err
			}
		}()
		runID, err = db.CreateRun(ctx, filepath.Base(opts.scenario), sc.Seed)
		if err != nil {
			return err
		}
	}

	var times, totals []float64
	err = sc.Run(org, func(org *sim.Organism) error {
		s := sim.Summarize(org)
		logrus.Infof("t=%.3f: %d organs, total length %.3f cm", s.Time, s.Organs, s.TotalLength)
		fmt.Fprintf(w, "t=%-8.3f organs=%-5d nodes=%-6d total length=%-10.3f max order=%d\n",
			s.Time, s.Organs, s.TotalNodes, s.TotalLength, s.MaxOrder)
		times = append(times, s.Time)
		totals = append(totals, s.TotalLength)
		if db != nil {
			return db.SaveSnapshot(ctx, runID, org)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if org.Trace().Enabled() {
		ts := trace.Summarize(org.Trace())
		fmt.Fprintf(w, "laterals: %d emerged, %d without successor", ts.EmergedCount, ts.SkippedCount)
		if ts.EmergedCount > 0 {
			fmt.Fprintf(w, ", first at t=%.3f, last at t=%.3f", ts.FirstEmergence, ts.LastEmergence)
		}
		fmt.Fprintln(w)
	}
	if db != nil {
		fmt.Fprintf(w, "snapshots: run %d in %s\n", runID, db.Path())
	}
	if opts.plot {
		fmt.Fprintln(w, plot.LengthSeries("total length [cm]", times, totals))
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runOpts.scenario, "scenario", "", "Scenario YAML file")
	runCmd.Flags().StringVar(&runOpts.db, "db", "", "SQLite file to store organ snapshots in")
	runCmd.Flags().BoolVar(&runOpts.plot, "plot", false, "Print an ASCII plot of the total length")
	runCmd.Flags().BoolVar(&runOpts.trace, "trace", false, "Record and summarize lateral emergences")
}
