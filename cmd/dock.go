package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/dock"
	"github.com/emsift/emsift/screen/trace"
)

var (
	goldTemplate string // Docking configuration template
	protonateBin string // Protonation tool executable
	dockBin      string // Docking engine executable
)

// dockCmd groups the docking passes
var dockCmd = &cobra.Command{
	Use:   "dock",
	Short: "Prepare and run docking over the batch",
}

var dockPrepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Copy the docking configuration into each variant and protonate its model",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("template") {
			cfg.Dock.Prep.Template = goldTemplate
		}
		if cmd.Flags().Changed("protonate-bin") && len(cfg.Dock.Prep.Protonate) > 0 {
			cfg.Dock.Prep.Protonate[0] = protonateBin
		}
		ctx, stop := signalContext()
		defer stop()

		bt, err := runDockPrep(ctx, cfg, newRunner())
		logSummary(bt)
		if err != nil {
			logrus.Fatalf("Docking preparation aborted: %v", err)
		}
		logrus.Info("Batch setup completed for all variants.")
	},
}

var dockRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the docking engine in every variant directory",
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("dock-bin") && len(cfg.Dock.Run.Command) > 0 {
			cfg.Dock.Run.Command[0] = dockBin
		}
		ctx, stop := signalContext()
		defer stop()

		bt, err := runDock(ctx, cfg, newRunner())
		logSummary(bt)
		if err != nil {
			logrus.Fatalf("Docking aborted: %v", err)
		}
	},
}

func runDockPrep(ctx context.Context, c Config, runner screen.CommandRunner) (*trace.BatchTrace, error) {
	if err := c.Dock.Prep.Validate(); err != nil {
		return nil, err
	}
	return dock.NewPreparer(runner, c.Dock.Prep).PrepareBatch(ctx, c.Root, c.Layout.VariantGlob)
}

func runDock(ctx context.Context, c Config, runner screen.CommandRunner) (*trace.BatchTrace, error) {
	if err := c.Dock.Run.Validate(); err != nil {
		return nil, err
	}
	return dock.NewDocker(runner, c.Dock.Run).RunBatch(ctx, c.Root, c.Layout.VariantGlob)
}

func init() {
	dockPrepCmd.Flags().StringVar(&goldTemplate, "template", "gold.conf", "Docking configuration template copied into every variant")
	dockPrepCmd.Flags().StringVar(&protonateBin, "protonate-bin", "gold_utils", "Protonation tool executable")
	dockRunCmd.Flags().StringVar(&dockBin, "dock-bin", "gold_auto", "Docking engine executable")
	dockCmd.AddCommand(dockPrepCmd, dockRunCmd)
	dockCmd.PersistentFlags().BoolVar(&echoTools, "echo", false, "Copy the output of external tools to stderr")
	rootCmd.AddCommand(dockCmd)
}
