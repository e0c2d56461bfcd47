package screen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen/trace"
)

// MinimizeConfig configures the retry loop.
type MinimizeConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	Markers    Markers  `yaml:"markers"`
	Prepare    []string `yaml:"prepare"`     // preprocessing command, run before every retry
	Run        []string `yaml:"run"`         // minimization command
	StatusFile string   `yaml:"status_file"` // batch summary, relative to the batch root
}

// DefaultMinimizeConfig returns the GROMACS grompp + mdrun retry loop with a
// budget of four retries.
//
// Placeholders expanded in Prepare and Run: {parameter}, {structure},
// {topology}, {base}, {index}, {variant}, {variant_id}.
func DefaultMinimizeConfig() MinimizeConfig {
	return MinimizeConfig{
		MaxRetries: 4,
		Markers:    DefaultMarkers(),
		Prepare: []string{"gmx", "grompp", "-f", "{parameter}", "-c", "{structure}",
			"-maxwarn", "2", "-p", "{topology}", "-o", "{base}.tpr"},
		Run:        []string{"gmx", "mdrun", "-v", "-deffnm", "{base}"},
		StatusFile: "minimization_status.txt",
	}
}

// Validate checks the retry budget, markers and commands.
func (c MinimizeConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("minimize.max_retries must be non-negative, got %d", c.MaxRetries)
	}
	if err := c.Markers.Validate(); err != nil {
		return fmt.Errorf("minimize.markers: %w", err)
	}
	if len(c.Run) == 0 || strings.TrimSpace(c.Run[0]) == "" {
		return fmt.Errorf("minimize.run must name a program")
	}
	if len(c.Prepare) > 0 && strings.TrimSpace(c.Prepare[0]) == "" {
		return fmt.Errorf("minimize.prepare must name a program when set")
	}
	if !strings.Contains(strings.Join(c.Run, " "), "{base}") {
		return fmt.Errorf("minimize.run must reference {base} so each retry writes its own files")
	}
	return nil
}

// AttemptRecord is one issued retry.
type AttemptRecord struct {
	Index   int
	Base    string
	Outcome Outcome
	Event   Event
	Err     error
}

// MinimizeResult is the end state of one variant's retry loop.
type MinimizeResult struct {
	Variant  Variant
	State    State
	Baseline Outcome
	Attempts []AttemptRecord
	Err      error // why the variant did not converge; nil when it did
}

// Retries returns the number of retry invocations issued.
func (r *MinimizeResult) Retries() int { return len(r.Attempts) }

// ConvergedBase returns the base name of the converged attempt, or "" when
// the variant did not converge.
func (r *MinimizeResult) ConvergedBase(prefix string) string {
	if r.State != StateConverged {
		return ""
	}
	if n := len(r.Attempts); n > 0 {
		return r.Attempts[n-1].Base
	}
	return AttemptBase(prefix, 0)
}

// Status maps the result onto the batch status vocabulary.
func (r *MinimizeResult) Status() trace.Status {
	switch {
	case r.State == StateConverged:
		return trace.StatusCompleted
	case r.State == StateExhausted:
		return trace.StatusExhausted
	case r.State == StateToolFailure:
		return trace.StatusFailed
	case errors.Is(r.Err, ErrMissingInputFiles):
		return trace.StatusSkipped
	default:
		return trace.StatusUndetermined
	}
}

// Describe returns a one-line human-readable account of the result.
func (r *MinimizeResult) Describe() string {
	switch r.State {
	case StateConverged:
		if n := len(r.Attempts); n > 0 {
			return fmt.Sprintf("converged on attempt %d (%s)", r.Attempts[n-1].Index, r.Attempts[n-1].Base)
		}
		return "baseline converged"
	case StateExhausted:
		return fmt.Sprintf("no convergence after %d retries", len(r.Attempts))
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return string(r.State)
}

// Orchestrator drives the minimization retry loop of each variant through a
// CommandRunner, one attempt at a time.
type Orchestrator struct {
	Runner CommandRunner
	Layout Layout
	Config MinimizeConfig
	Log    logrus.FieldLogger
}

// NewOrchestrator creates an Orchestrator logging to the standard logrus logger.
func NewOrchestrator(runner CommandRunner, layout Layout, cfg MinimizeConfig) *Orchestrator {
	return &Orchestrator{Runner: runner, Layout: layout, Config: cfg, Log: logrus.StandardLogger()}
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// Minimize evaluates the baseline log of v and, when it did not converge,
// issues numbered retries until one converges, the budget is exhausted or a
// tool invocation fails.
func (o *Orchestrator) Minimize(ctx context.Context, v Variant) *MinimizeResult {
	log := o.logger().WithField("variant", v.Name)
	res := &MinimizeResult{Variant: v, State: StatePending, Baseline: OutcomeUnknown}
	maxRetries := o.Config.MaxRetries

	if missing := MissingInputs(v.Dir, o.Layout); len(missing) > 0 {
		res.Err = &VariantError{Variant: v.Name, Err: fmt.Errorf("%w: %s", ErrMissingInputFiles, strings.Join(missing, ", "))}
		log.Errorf("Missing files in %s: %s. Skipping.", v.Dir, strings.Join(missing, ", "))
		return res
	}

	baseLog := filepath.Join(v.Dir, AttemptBase(o.Layout.Prefix, 0)+o.Layout.LogExt)
	outcome, err := InterpretLogFile(baseLog, o.Config.Markers)
	res.Baseline = outcome
	switch outcome {
	case OutcomeConverged:
		res.State = Transition(res.State, EventBaselineConverged, 0, maxRetries)
		log.Infof("Convergence reached in %s.", baseLog)
		return res
	case OutcomeNotConverged:
		res.State = Transition(res.State, EventBaselineNotConverged, 0, maxRetries)
		log.Errorf("Did not converge in %s. Trying to rerun minimization...", baseLog)
	default:
		res.State = Transition(res.State, EventBaselineUnknown, 0, maxRetries)
		cause := fmt.Errorf("%w: could not interpret %s", ErrAmbiguousOutcome, baseLog)
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrAmbiguousOutcome, err)
		}
		res.Err = &VariantError{Variant: v.Name, Err: cause}
		withErr(log, err).Warnf("Could not interpret %s; no retry issued.", baseLog)
		return res
	}

	for i := 1; res.State == StateRunning; i++ {
		if err := ctx.Err(); err != nil {
			res.Err = &VariantError{Variant: v.Name, Attempt: i, Err: err}
			log.WithError(err).Warn("Minimization interrupted.")
			return res
		}
		rec := o.attempt(ctx, v, i, log)
		res.Attempts = append(res.Attempts, rec)
		res.State = Transition(res.State, rec.Event, i, maxRetries)
	}

	switch res.State {
	case StateToolFailure:
		last := res.Attempts[len(res.Attempts)-1]
		res.Err = &VariantError{Variant: v.Name, Attempt: last.Index, Err: last.Err}
	case StateExhausted:
		res.Err = &VariantError{Variant: v.Name, Err: fmt.Errorf("no convergence after %d retries", len(res.Attempts))}
		log.Errorf("No convergence after %d retries.", len(res.Attempts))
	}
	return res
}

// attempt runs the i-th retry and classifies it as a state-machine event.
func (o *Orchestrator) attempt(ctx context.Context, v Variant, i int, log logrus.FieldLogger) AttemptRecord {
	base := AttemptBase(o.Layout.Prefix, i)
	rec := AttemptRecord{Index: i, Base: base, Outcome: OutcomeUnknown}
	log = log.WithField("attempt", i)
	vars := map[string]string{
		"parameter":  o.Layout.ParameterFile,
		"structure":  o.Layout.StructureFile,
		"topology":   o.Layout.TopologyFile,
		"base":       base,
		"index":      strconv.Itoa(i),
		"variant":    v.Name,
		"variant_id": v.ID,
	}
	log.Infof("Attempt %d: running minimization for %s...", i, base)

	for _, tmpl := range [][]string{o.Config.Prepare, o.Config.Run} {
		if len(tmpl) == 0 {
			continue
		}
		args := ExpandArgs(tmpl, vars)
		res, err := o.Runner.Run(ctx, v.Dir, args...)
		if err := CheckRun(res, err, args); err != nil {
			rec.Event, rec.Err = EventToolFailed, err
			log.WithError(err).Errorf("Minimization execution failed on attempt %d.", i)
			return rec
		}
	}

	logPath := filepath.Join(v.Dir, base+o.Layout.LogExt)
	if _, err := os.Stat(logPath); err != nil {
		rec.Event = EventAttemptMissingLog
		rec.Err = fmt.Errorf("%w: %s was not generated", ErrMissingExpectedOutput, base+o.Layout.LogExt)
		log.Errorf("File %s was not generated on attempt %d.", base+o.Layout.LogExt, i)
		return rec
	}

	outcome, err := InterpretLogFile(logPath, o.Config.Markers)
	rec.Outcome = outcome
	if outcome == OutcomeConverged {
		rec.Event = EventAttemptConverged
		log.Infof("Convergence reached in %s on attempt %d.", logPath, i)
		return rec
	}
	rec.Event = EventAttemptNotConverged
	rec.Err = err
	withErr(log, err).Errorf("Attempt %d did not converge in %s.", i, logPath)
	return rec
}

func withErr(log logrus.FieldLogger, err error) logrus.FieldLogger {
	if err == nil {
		return log
	}
	return log.WithError(err)
}

// Variants lists the variants below root using the configured glob.
func (o *Orchestrator) Variants(root string) ([]Variant, error) {
	return DiscoverVariants(root, o.Layout.VariantGlob)
}

// MinimizeBatch runs Minimize for every variant below root, in lexical
// order, appending one block per variant to reporter when it is non-nil.
// Only a missing root or a cancelled context stops the batch early.
func (o *Orchestrator) MinimizeBatch(ctx context.Context, root string, reporter *BatchReporter) (*trace.BatchTrace, error) {
	variants, err := o.Variants(root)
	if err != nil {
		return nil, err
	}
	return o.MinimizeVariants(ctx, variants, reporter)
}

// MinimizeVariants runs Minimize over an explicit variant list.
func (o *Orchestrator) MinimizeVariants(ctx context.Context, variants []Variant, reporter *BatchReporter) (*trace.BatchTrace, error) {
	runID := ""
	if reporter != nil {
		runID = reporter.RunID()
	}
	bt := trace.NewBatchTrace(runID, trace.StageMinimize)
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return bt, err
		}
		o.logger().WithField("variant", v.Name).Infof("Processing directory: %s", v.Dir)
		res := o.Minimize(ctx, v)

		rec := trace.VariantRecord{Variant: v.Name, Status: res.Status(), Attempts: res.Retries()}
		if res.Err != nil {
			rec.Reason = res.Err.Error()
		}
		bt.Record(rec)

		if reporter != nil {
			if err := reporter.Minimization(res); err != nil {
				o.logger().WithError(err).Error("Failed to update batch summary.")
			}
		}
	}
	return bt, nil
}
