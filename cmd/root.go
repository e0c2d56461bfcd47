package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emsift/emsift/screen/trace"
)

var (
	// CLI flags shared by every subcommand
	logLevel   string // Log verbosity level
	configPath string // YAML configuration file
	rootDir    string // Batch root holding the variant directories

	// Effective configuration, loaded before any subcommand runs
	cfg Config
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "emsift",
	Short: "Energy-minimization screening pipeline for protein variants",
	Long: `emsift drives a batch of protein-variant directories through energy
minimization with bounded retries, keeps the best replica of each variant,
locates the binding pocket, prepares and runs docking, and aggregates the
docking scores into one report.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err = LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		// Flags override config values only when explicitly set
		if cmd.Flags().Changed("root") {
			cfg.Root = rootDir
		}
	},
}

// signalContext is cancelled on SIGINT or SIGTERM, so a running external tool
// is killed and the batch stops before the next variant.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// logSummary reports the aggregate of one pass.
func logSummary(bt *trace.BatchTrace) {
	s := trace.Summarize(bt)
	fields := logrus.Fields{
		"variants": s.TotalVariants,
		"attempts": s.TotalAttempts,
	}
	if bt != nil {
		fields["stage"] = bt.Stage
		if bt.RunID != "" {
			fields["run"] = bt.RunID
		}
	}
	for status, n := range s.ByStatus {
		fields[string(status)] = n
	}
	if s.BestVariant != "" {
		fields["best"] = s.BestVariant
		fields["best_fmax"] = s.BestForce
	}
	logrus.WithFields(fields).Infof("%d of %d variants completed.", s.Completed(), s.TotalVariants)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up the shared flags
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "monomers", "Batch root directory holding the variant directories")
}
