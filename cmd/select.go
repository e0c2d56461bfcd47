package cmd

import (
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

var noPromote bool // Keep every attempt's files

// selectCmd ranks each variant's attempts and promotes the best replica
var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Keep the replica with the lowest maximum force in each variant",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("no-promote") {
			cfg.Select.Promote = !noPromote
		}
		bt, err := runSelect(cfg)
		logSummary(bt)
		if err != nil {
			logrus.Fatalf("Selection aborted: %v", err)
		}
	},
}

// runSelect ranks and promotes every variant below c.Root and writes the
// replica status file.
func runSelect(c Config) (*trace.BatchTrace, error) {
	s := screen.NewSelector(c.Layout, c.Select)
	variants, err := screen.DiscoverVariants(c.Root, c.Layout.VariantGlob)
	if err != nil {
		return nil, err
	}
	reporter, err := screen.NewBatchReporter(filepath.Join(c.Root, c.Select.StatusFile), "Best replica summary", screen.NewRunID())
	if err != nil {
		return nil, err
	}
	defer func() { _ = reporter.Close() }()
	s.Log = logrus.WithField("run", reporter.RunID())

	bt := s.SelectVariants(variants, reporter)
	logrus.Infof("Global summary saved in: %s", reporter.Path())
	return bt, nil
}

func init() {
	selectCmd.Flags().BoolVar(&noPromote, "no-promote", false, "Write the summaries without deleting or renaming any file")
	rootCmd.AddCommand(selectCmd)
}
