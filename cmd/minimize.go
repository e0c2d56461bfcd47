package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

var (
	maxRetries int  // Retry budget per variant
	echoTools  bool // Copy external tool output to stderr
)

// minimizeCmd runs the convergence retry loop over the batch
var minimizeCmd = &cobra.Command{
	Use:   "minimize",
	Short: "Rerun energy minimization until each variant converges or the retry budget is spent",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("max-retries") {
			cfg.Minimize.MaxRetries = maxRetries
		}
		if err := cfg.Minimize.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		ctx, stop := signalContext()
		defer stop()

		bt, err := runMinimize(ctx, cfg, newRunner())
		logSummary(bt)
		if err != nil {
			logrus.Fatalf("Minimization aborted: %v", err)
		}
	},
}

func newRunner() screen.ExecRunner {
	r := screen.ExecRunner{}
	if echoTools {
		r.Echo = os.Stderr
	}
	return r
}

// runMinimize drives every variant below c.Root through the retry loop and
// writes the minimization status file.
func runMinimize(ctx context.Context, c Config, runner screen.CommandRunner) (*trace.BatchTrace, error) {
	o := screen.NewOrchestrator(runner, c.Layout, c.Minimize)
	variants, err := o.Variants(c.Root)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Found %d variant directories in %s", len(variants), c.Root)

	reporter, err := screen.NewBatchReporter(filepath.Join(c.Root, c.Minimize.StatusFile), "Minimization status", screen.NewRunID())
	if err != nil {
		return nil, err
	}
	defer func() { _ = reporter.Close() }()
	o.Log = logrus.WithField("run", reporter.RunID())

	return o.MinimizeVariants(ctx, variants, reporter)
}

func init() {
	minimizeCmd.Flags().IntVar(&maxRetries, "max-retries", 4, "Maximum number of retries per variant")
	minimizeCmd.Flags().BoolVar(&echoTools, "echo", false, "Copy the output of external tools to stderr")
	rootCmd.AddCommand(minimizeCmd)
}
