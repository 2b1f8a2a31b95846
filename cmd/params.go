package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/organsim/organsim/sim"
)

var (
	paramsPath string
	paramsSeed int64
)

// paramsCmd validates a parameter file and shows one realization per set
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Validate a parameter file and print one realization of every set",
	Run: func(cmd *cobra.Command, args []string) {
		if paramsPath == "" {
			logrus.Fatalf("Parameter file not provided.")
		}
		if err := showRealizations(cmd.OutOrStdout(), paramsPath, paramsSeed); err != nil {
			logrus.Fatalf("Invalid parameter file: %v", err)
		}
	},
}

func showRealizations(w io.Writer, path string, seed int64) error {
	sets, err := sim.LoadParameterFile(path)
	if err != nil {
		return err
	}
	org := sim.NewOrganism(seed)
	for _, p := range sets {
		if err := org.SetOrganRandomParameter(p); err != nil {
			return fmt.Errorf("parameter set %q: %w", p.Name, err)
		}
	}
	for _, p := range org.OrganRandomParameters() {
		rp, err := org.Realize(p.OrganType, p.SubType)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %d (%s): lb=%.4g la=%.4g nob=%d r=%.4g a=%.4g theta=%.4g dx=%.4g k=%.4g\n",
			p.OrganType, p.SubType, p.Name, rp.Lb, rp.La, rp.Nob, rp.R, rp.A, rp.Theta, rp.Dx, rp.K())
	}
	return nil
}

func init() {
	paramsCmd.Flags().StringVar(&paramsPath, "in", "", "Parameter YAML file")
	paramsCmd.Flags().Int64Var(&paramsSeed, "seed", 1, "Seed for the realization")
}
