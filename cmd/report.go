package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen/dock"
)

var (
	reportFormat string // csv, markdown or ascii
	reportOutput string // Output file; stdout when empty
	reportPoses  int    // Number of poses per column
)

// reportCmd aggregates the docking rank files of the batch
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate the docking scores of every variant into one table",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("format") {
			cfg.Report.Format = dock.Format(reportFormat)
		}
		if cmd.Flags().Changed("output") {
			cfg.Report.Output = reportOutput
		}
		if cmd.Flags().Changed("poses") {
			cfg.Report.Poses = reportPoses
		}
		if err := runReport(cfg, os.Stdout); err != nil {
			logrus.Fatalf("Report failed: %v", err)
		}
	},
}

// runReport builds the report and writes it to c.Report.Output, or to
// stdout when no output file is configured.
func runReport(c Config, stdout io.Writer) error {
	if err := c.Report.Validate(); err != nil {
		return err
	}
	format, err := dock.ParseFormat(string(c.Report.Format))
	if err != nil {
		return err
	}
	glob := c.Report.VariantGlob
	if glob == "" {
		glob = c.Layout.VariantGlob
	}
	rep, err := dock.BuildReport(c.Root, glob, c.Report, logrus.StandardLogger())
	if err != nil {
		return err
	}
	if c.Report.Output == "" {
		return rep.Render(stdout, format)
	}
	f, err := os.Create(c.Report.Output)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := rep.Render(f, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logrus.Infof("Report written to %s (%d columns, %d poses)", c.Report.Output, len(rep.Columns), rep.Poses)
	return nil
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := cfg.Marshal()
		if err != nil {
			logrus.Fatalf("Failed to render configuration: %v", err)
		}
		_, _ = os.Stdout.Write(out)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "csv", "Output format (csv, markdown, ascii)")
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "Output file (stdout when empty)")
	reportCmd.Flags().IntVar(&reportPoses, "poses", 200, "Number of poses per column")
	rootCmd.AddCommand(reportCmd, configCmd)
}
