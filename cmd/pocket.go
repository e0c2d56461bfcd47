package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen/pocket"
	"github.com/emsift/emsift/screen/trace"
)

var referencePDB string // Ligand-bound reference structure

// pocketCmd locates the binding pocket of every minimized variant
var pocketCmd = &cobra.Command{
	Use:   "pocket",
	Short: "Locate the binding pocket centroid and active-site residues of each variant",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("reference") {
			cfg.Pocket.Reference = referencePDB
		}
		bt, err := runPocket(cfg)
		logSummary(bt)
		if err != nil {
			logrus.Fatalf("Pocket location aborted: %v", err)
		}
	},
}

func runPocket(c Config) (*trace.BatchTrace, error) {
	if c.Pocket.Reference == "" {
		return nil, fmt.Errorf("no reference structure: set pocket.reference or --reference")
	}
	if err := c.Pocket.Validate(); err != nil {
		return nil, err
	}
	return pocket.NewLocator(c.Pocket).LocateBatch(c.Root, c.Layout.VariantGlob)
}

func init() {
	pocketCmd.Flags().StringVar(&referencePDB, "reference", "", "Ligand-bound reference PDB file")
	rootCmd.AddCommand(pocketCmd)
}
