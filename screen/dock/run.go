package dock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

// Banners shown on the third line of the status board.
const (
	BannerRunning   = "Docking in progress. Please do not turn off the machine."
	BannerCompleted = "All tasks have been completed. The machine can be turned off."
)

const separator = "--------------------"

// RunConfig configures the docking run.
type RunConfig struct {
	Command    []string `yaml:"command"`     // run inside each variant directory
	StatusFile string   `yaml:"status_file"` // status board, relative to the batch root
}

// DefaultRunConfig returns the GOLD batch defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Command:    []string{"gold_auto", "gold.conf"},
		StatusFile: "docking_status.txt",
	}
}

// Validate checks the command and the status file name.
func (c RunConfig) Validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return fmt.Errorf("dock.run.command must name a program")
	}
	if strings.TrimSpace(c.StatusFile) == "" {
		return fmt.Errorf("dock.run.status_file must not be empty")
	}
	return nil
}

// StatusBoard is a human-watched progress file: a timestamp line, a banner
// line and one block per variant. The banner is the only line ever
// rewritten; blocks are append-only.
type StatusBoard struct {
	path string
}

// NewStatusBoard creates (or truncates) path with the running banner.
func NewStatusBoard(path string, started time.Time) (*StatusBoard, error) {
	header := fmt.Sprintf("%s\n\n%s\n\n", started.Format("02-01-2006 15:04:05"), BannerRunning)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("creating status board: %w", err)
	}
	return &StatusBoard{path: path}, nil
}

// Path returns the board location.
func (b *StatusBoard) Path() string { return b.path }

// Append adds text to the end of the board.
func (b *StatusBoard) Append(text string) error {
	f, err := os.OpenFile(b.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening status board: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending to status board: %w", err)
	}
	return f.Close()
}

// Finish switches the banner to BannerCompleted.
func (b *StatusBoard) Finish() error {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("reading status board: %w", err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) < 3 {
		return fmt.Errorf("status board %s has no banner line", b.path)
	}
	lines[2] = BannerCompleted + "\n"
	return os.WriteFile(b.path, []byte(strings.Join(lines, "")), 0o644)
}

// Docker runs the docking engine over every variant of a batch.
type Docker struct {
	Runner screen.CommandRunner
	Config RunConfig
	Log    logrus.FieldLogger
	Now    func() time.Time
}

// NewDocker creates a Docker logging to the standard logrus logger.
func NewDocker(runner screen.CommandRunner, cfg RunConfig) *Docker {
	return &Docker{Runner: runner, Config: cfg, Log: logrus.StandardLogger(), Now: time.Now}
}

func (d *Docker) logger() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// RunBatch docks every variant below root matching glob, sequentially,
// recording each one on the status board. The banner is switched to
// completed once every variant was attempted; a cancelled context leaves it
// running.
func (d *Docker) RunBatch(ctx context.Context, root, glob string) (*trace.BatchTrace, error) {
	variants, err := screen.DiscoverVariants(root, glob)
	if err != nil {
		return nil, err
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	board, err := NewStatusBoard(joinRoot(root, d.Config.StatusFile), now())
	if err != nil {
		return nil, err
	}

	bt := trace.NewBatchTrace("", trace.StageDock)
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return bt, err
		}
		log := d.logger().WithField("variant", v.Name)
		log.Infof("Processing folder: %s", v.Dir)
		if err := board.Append("Starting processing for folder: " + v.Name + "\n"); err != nil {
			return bt, err
		}

		res, runErr := d.Runner.Run(ctx, v.Dir, d.Config.Command...)
		rec := trace.VariantRecord{Variant: v.Name, Status: trace.StatusCompleted, Attempts: 1}
		var block string
		switch {
		case runErr != nil && errors.Is(runErr, exec.ErrNotFound):
			block = fmt.Sprintf("ERROR: Command '%s' not found.\nCheck if it is in your $PATH or use the absolute path.\n%s\n\n",
				d.Config.Command[0], separator)
		case runErr != nil:
			block = fmt.Sprintf("UNEXPECTED ERROR: %v\n%s\n\n", runErr, separator)
		case res.ExitCode != 0:
			block = fmt.Sprintf("ERROR: The docking command returned an error.\nError output:\n%s\n%s\n\n",
				strings.TrimRight(res.Stderr, "\n"), separator)
		default:
			block = "    Docking completed successfully.\n\n"
		}
		if err := screen.CheckRun(res, runErr, d.Config.Command); err != nil {
			rec.Status, rec.Reason = trace.StatusFailed, err.Error()
			log.WithError(err).Error("Docking failed.")
		}
		bt.Record(rec)
		if err := board.Append(block); err != nil {
			return bt, err
		}
	}

	if err := board.Finish(); err != nil {
		return bt, err
	}
	d.logger().Infof("Docking process completed for all variants. Check %s.", board.Path())
	return bt, nil
}

func joinRoot(root, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(root, name)
}
