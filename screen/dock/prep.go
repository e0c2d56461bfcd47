// Package dock prepares variant directories for the docking engine, runs it
// over a batch with a live status board, and aggregates the per-pose rank
// files into a single report.
package dock

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

// PrepConfig configures the docking preparation pass.
type PrepConfig struct {
	Template       string   `yaml:"template"`         // docking configuration template, copied into every variant
	ConfName       string   `yaml:"conf_name"`        // name of the copy inside the variant directory
	Input          string   `yaml:"input"`            // minimized model, {variant} and {variant_id} expanded
	Output         string   `yaml:"output"`           // protonated model, {variant} and {variant_id} expanded
	Protonate      []string `yaml:"protonate"`        // {input} and {output} expand to absolute paths
	ActiveSiteFile string   `yaml:"active_site_file"` // written by the pocket pass
}

// DefaultPrepConfig returns the GOLD preparation defaults.
func DefaultPrepConfig() PrepConfig {
	return PrepConfig{
		Template:       "gold.conf",
		ConfName:       "gold.conf",
		Input:          "EM_Variant{variant_id}_monomer.pdb",
		Output:         "EM_Variant{variant_id}_monomer_H.pdb",
		Protonate:      []string{"gold_utils", "-protonate", "-i", "{input}", "-o", "{output}"},
		ActiveSiteFile: "gold_activesite_aas.txt",
	}
}

// Validate checks that every file name and the protonation command are set.
func (c PrepConfig) Validate() error {
	for name, v := range map[string]string{
		"template":         c.Template,
		"conf_name":        c.ConfName,
		"input":            c.Input,
		"output":           c.Output,
		"active_site_file": c.ActiveSiteFile,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("dock.prep.%s must not be empty", name)
		}
	}
	if len(c.Protonate) == 0 || strings.TrimSpace(c.Protonate[0]) == "" {
		return fmt.Errorf("dock.prep.protonate must name a program")
	}
	return nil
}

// ConfUpdate reports which settings RewriteConf replaced.
type ConfUpdate struct {
	Cavity  bool
	Protein bool
}

// RewriteConf replaces the value of every "cavity_file =" and
// "protein_datafile =" line of a docking configuration. All other lines are
// copied unchanged.
func RewriteConf(r io.Reader, w io.Writer, cavityFile, proteinFile string) (ConfUpdate, error) {
	var upd ConfUpdate
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "cavity_file ="):
				line, upd.Cavity = "cavity_file = "+cavityFile+"\n", true
			case strings.HasPrefix(trimmed, "protein_datafile ="):
				line, upd.Protein = "protein_datafile = "+proteinFile+"\n", true
			}
			if _, werr := io.WriteString(w, line); werr != nil {
				return upd, werr
			}
		}
		if errors.Is(err, io.EOF) {
			return upd, nil
		}
		if err != nil {
			return upd, err
		}
	}
}

// Preparer turns a located variant into a docking-ready directory.
type Preparer struct {
	Runner screen.CommandRunner
	Config PrepConfig
	Log    logrus.FieldLogger
}

// NewPreparer creates a Preparer logging to the standard logrus logger.
func NewPreparer(runner screen.CommandRunner, cfg PrepConfig) *Preparer {
	return &Preparer{Runner: runner, Config: cfg, Log: logrus.StandardLogger()}
}

func (p *Preparer) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

func variantVars(v screen.Variant) map[string]string {
	return map[string]string{"variant": v.Name, "variant_id": v.ID}
}

func expandName(tmpl string, v screen.Variant) string {
	return screen.ExpandArgs([]string{tmpl}, variantVars(v))[0]
}

// Prepare copies the configuration template into v, protonates the model
// and points the configuration at the protonated model and the active site.
func (p *Preparer) Prepare(ctx context.Context, v screen.Variant) error {
	log := p.logger().WithField("variant", v.Name)
	conf := filepath.Join(v.Dir, p.Config.ConfName)
	if err := copyFile(p.Config.Template, conf); err != nil {
		return fmt.Errorf("%w: %v", screen.ErrMissingInputFiles, err)
	}
	log.Infof("%s copied to: %s", p.Config.ConfName, v.Dir)

	input, err := filepath.Abs(filepath.Join(v.Dir, expandName(p.Config.Input, v)))
	if err != nil {
		return err
	}
	output, err := filepath.Abs(filepath.Join(v.Dir, expandName(p.Config.Output, v)))
	if err != nil {
		return err
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("%w: %s", screen.ErrMissingInputFiles, filepath.Base(input))
	}
	if err := os.Remove(output); err == nil {
		log.Warnf("Output file %s already existed and was removed.", output)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale %s: %w", output, err)
	}

	args := screen.ExpandArgs(p.Config.Protonate, map[string]string{"input": input, "output": output})
	res, err := p.Runner.Run(ctx, v.Dir, args...)
	if err := screen.CheckRun(res, err, args); err != nil {
		return err
	}
	log.Infof("Protonation completed: %s", output)
	if strings.TrimSpace(res.Stderr) != "" {
		log.Debugf("protonation warnings: %s", strings.TrimSpace(res.Stderr))
	}

	site := filepath.Join(v.Dir, p.Config.ActiveSiteFile)
	if _, err := os.Stat(site); err != nil {
		return fmt.Errorf("%w: %s", screen.ErrMissingInputFiles, p.Config.ActiveSiteFile)
	}

	upd, err := rewriteFile(conf, p.Config.ActiveSiteFile, output)
	if err != nil {
		return fmt.Errorf("updating %s: %w", conf, err)
	}
	if !upd.Protein {
		log.Warnf("'protein_datafile =' not found in %s", p.Config.ConfName)
	}
	if !upd.Cavity {
		log.Warnf("'cavity_file =' not found in %s", p.Config.ConfName)
	}
	log.Infof("%s updated successfully.", p.Config.ConfName)
	return nil
}

// PrepareBatch runs Prepare for every variant below root matching glob.
func (p *Preparer) PrepareBatch(ctx context.Context, root, glob string) (*trace.BatchTrace, error) {
	variants, err := screen.DiscoverVariants(root, glob)
	if err != nil {
		return nil, err
	}
	bt := trace.NewBatchTrace("", trace.StageDock)
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return bt, err
		}
		rec := trace.VariantRecord{Variant: v.Name, Status: trace.StatusCompleted}
		if err := p.Prepare(ctx, v); err != nil {
			rec.Reason = err.Error()
			rec.Status = trace.StatusFailed
			if errors.Is(err, screen.ErrMissingInputFiles) {
				rec.Status = trace.StatusSkipped
			}
			p.logger().WithField("variant", v.Name).WithError(err).Error("Docking preparation failed.")
		}
		bt.Record(rec)
	}
	return bt, nil
}

func rewriteFile(path, cavity, protein string) (ConfUpdate, error) {
	in, err := os.ReadFile(path)
	if err != nil {
		return ConfUpdate{}, err
	}
	var out strings.Builder
	upd, err := RewriteConf(strings.NewReader(string(in)), &out, cavity, protein)
	if err != nil {
		return upd, err
	}
	return upd, os.WriteFile(path, []byte(out.String()), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
