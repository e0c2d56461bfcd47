package screen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen/trace"
)

// SelectConfig configures the best-replica pass.
type SelectConfig struct {
	SummaryFile string `yaml:"summary_file"` // per-variant summary, relative to the variant directory
	StatusFile  string `yaml:"status_file"`  // batch summary, relative to the batch root
	Promote     bool   `yaml:"promote"`      // rename the winner to the canonical name and delete the rest
}

// DefaultSelectConfig returns the defaults of the selection pass.
func DefaultSelectConfig() SelectConfig {
	return SelectConfig{
		SummaryFile: "forces_summary.txt",
		StatusFile:  "replicated_status.txt",
		Promote:     true,
	}
}

// Validate checks that both summary files are named.
func (c SelectConfig) Validate() error {
	if strings.TrimSpace(c.SummaryFile) == "" {
		return fmt.Errorf("select.summary_file must not be empty")
	}
	if strings.TrimSpace(c.StatusFile) == "" {
		return fmt.Errorf("select.status_file must not be empty")
	}
	return nil
}

// SelectResult is what the selection pass did to one variant.
type SelectResult struct {
	Variant     Variant
	Selection   *RankedSelection // nil when no attempt reported a force
	SummaryPath string
	Promotion   *Promotion
	Err         error
}

// Selector ranks attempts by maximum force and promotes the winner.
type Selector struct {
	Layout Layout
	Config SelectConfig
	Log    logrus.FieldLogger
}

// NewSelector creates a Selector logging to the standard logrus logger.
func NewSelector(layout Layout, cfg SelectConfig) *Selector {
	return &Selector{Layout: layout, Config: cfg, Log: logrus.StandardLogger()}
}

func (s *Selector) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// SelectVariant extracts, ranks, summarizes and (when configured) promotes
// one variant. Variants without any force record are skipped with
// ErrNoMetricFound.
func (s *Selector) SelectVariant(v Variant) *SelectResult {
	log := s.logger().WithField("variant", v.Name)
	res := &SelectResult{Variant: v}

	records, err := ExtractForces(v.Dir, s.Layout)
	if err != nil {
		log.WithError(err).Warn("Some attempt logs could not be read.")
	}
	sel, rerr := Rank(records)
	if rerr != nil {
		res.Err = &VariantError{Variant: v.Name, Err: rerr}
		log.Warnf("No %s*%s containing 'Maximum force' found. Skipping folder.", s.Layout.Prefix, s.Layout.LogExt)
		return res
	}
	res.Selection = sel

	res.SummaryPath = filepath.Join(v.Dir, s.Config.SummaryFile)
	if err := WriteSummary(res.SummaryPath, sel, s.Layout.LogExt); err != nil {
		res.Err = &VariantError{Variant: v.Name, Err: err}
		log.WithError(err).Error("Could not write forces summary.")
		return res
	}
	log.Infof("Summary saved in: %s", res.SummaryPath)
	log.Infof("Best replica: %s%s (Fmax=%.2f)", sel.Winner.Base, s.Layout.LogExt, sel.Winner.Force)

	if !s.Config.Promote {
		return res
	}
	promo, err := Promote(v.Dir, sel.Winner.Base, s.Layout)
	res.Promotion = promo
	if err != nil {
		res.Err = &VariantError{Variant: v.Name, Err: err}
		log.WithError(err).Error("Promotion failed.")
		return res
	}
	for _, name := range promo.Removed {
		log.Debugf("Removed: %s", name)
	}
	for _, r := range promo.Renamed {
		log.WithField("blake3", promo.Digests[r.To]).Infof("Renamed: %s -> %s", r.From, r.To)
	}
	return res
}

// SelectBatch runs SelectVariant for every variant below root and appends a
// block per variant to reporter when it is non-nil.
func (s *Selector) SelectBatch(root string, reporter *BatchReporter) (*trace.BatchTrace, error) {
	variants, err := DiscoverVariants(root, s.Layout.VariantGlob)
	if err != nil {
		return nil, err
	}
	return s.SelectVariants(variants, reporter), nil
}

// SelectVariants runs SelectVariant over an explicit variant list.
func (s *Selector) SelectVariants(variants []Variant, reporter *BatchReporter) *trace.BatchTrace {
	runID := ""
	if reporter != nil {
		runID = reporter.RunID()
	}
	bt := trace.NewBatchTrace(runID, trace.StageSelect)
	for _, v := range variants {
		s.logger().WithField("variant", v.Name).Infof("Processing: %s", v.Name)
		res := s.SelectVariant(v)

		rec := trace.VariantRecord{Variant: v.Name}
		switch {
		case res.Selection == nil:
			rec.Status = trace.StatusSkipped
		case res.Err != nil:
			rec.Status = trace.StatusFailed
		default:
			rec.Status = trace.StatusCompleted
		}
		if res.Selection != nil {
			rec.Attempts = len(res.Selection.Records)
			rec.Winner = res.Selection.Winner.Base
			rec.Force = res.Selection.Winner.Force
		}
		if res.Err != nil {
			rec.Reason = res.Err.Error()
		}
		bt.Record(rec)

		if reporter == nil {
			continue
		}
		var rerr error
		switch rec.Status {
		case trace.StatusCompleted:
			rerr = reporter.Selection(v, res.SummaryPath, res.Selection, s.Layout.LogExt)
		default:
			rerr = reporter.Skipped(v, res.Err)
		}
		if rerr != nil {
			s.logger().WithError(rerr).Error("Failed to update batch summary.")
		}
	}
	return bt
}
