package pocket

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

// Config configures the pocket pass over a batch.
type Config struct {
	Reference       string `yaml:"reference"`        // ligand-bound reference PDB
	Model           string `yaml:"model"`            // per-variant model file name; {variant} and {variant_id} are expanded
	CoordinatesFile string `yaml:"coordinates_file"` // written into the variant directory
	ActiveSiteFile  string `yaml:"active_site_file"` // written into the variant directory
	Options         `yaml:",inline"`
}

// DefaultConfig returns the defaults of the pocket pass. Reference has no
// default and must be configured.
func DefaultConfig() Config {
	return Config{
		Model:           "EM_Variant{variant_id}_monomer.pdb",
		CoordinatesFile: "coordinates.txt",
		ActiveSiteFile:  "gold_activesite_aas.txt",
		Options:         DefaultOptions(),
	}
}

// Validate checks the file names and geometric options.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("pocket.model must not be empty")
	}
	if c.CoordinatesFile == "" || c.ActiveSiteFile == "" {
		return fmt.Errorf("pocket.coordinates_file and pocket.active_site_file must not be empty")
	}
	return c.Options.Validate()
}

// ModelPath returns the model file of v.
func (c Config) ModelPath(v screen.Variant) string {
	name := screen.ExpandArgs([]string{c.Model}, map[string]string{"variant": v.Name, "variant_id": v.ID})[0]
	return filepath.Join(v.Dir, name)
}

// Locator runs Locate for every variant of a batch against one reference.
type Locator struct {
	Config Config
	Log    logrus.FieldLogger
}

// NewLocator creates a Locator logging to the standard logrus logger.
func NewLocator(cfg Config) *Locator {
	return &Locator{Config: cfg, Log: logrus.StandardLogger()}
}

func (l *Locator) logger() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

// LocateVariant characterizes the pocket of one variant and writes its
// coordinates and active-site files.
func (l *Locator) LocateVariant(ref *Structure, v screen.Variant) (*Pocket, error) {
	log := l.logger().WithField("variant", v.Name)
	modelPath := l.Config.ModelPath(v)
	model, err := LoadPDB(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", screen.ErrMissingInputFiles, err)
	}

	p, err := Locate(ref, model, l.Config.Options)
	if p != nil {
		log.WithFields(logrus.Fields{
			"pairs":        p.Pairs,
			"ligand_atoms": p.LigandAtoms,
			"ref_pocket":   p.RefPocket,
			"model_pocket": p.ModelPocket,
			"near_model":   p.NearAtoms,
		}).Infof("Alignment RMSD for %s: %.3f", v.ID, p.RMSD)
	}
	if err != nil {
		return p, err
	}
	log.Infof("Centroid (X, Y, Z) for %s: (%.3f, %.3f, %.3f)", v.ID, p.Centroid[0], p.Centroid[1], p.Centroid[2])

	coords := filepath.Join(v.Dir, l.Config.CoordinatesFile)
	if err := WriteCoordinates(coords, p); err != nil {
		return p, err
	}
	site := filepath.Join(v.Dir, l.Config.ActiveSiteFile)
	if err := WriteActiveSite(site, p); err != nil {
		return p, err
	}
	log.Infof("Wrote %s and %s (%d residues)", coords, site, len(p.Active))
	return p, nil
}

// LocateBatch loads the reference once and runs LocateVariant for every
// variant below root matching glob. A missing reference or root aborts;
// every per-variant failure is recorded and skipped.
func (l *Locator) LocateBatch(root, glob string) (*trace.BatchTrace, error) {
	ref, err := LoadPDB(l.Config.Reference)
	if err != nil {
		return nil, fmt.Errorf("loading reference: %w", err)
	}
	variants, err := screen.DiscoverVariants(root, glob)
	if err != nil {
		return nil, err
	}
	bt := trace.NewBatchTrace("", trace.StagePocket)
	for _, v := range variants {
		rec := trace.VariantRecord{Variant: v.Name, Status: trace.StatusCompleted}
		if _, err := l.LocateVariant(ref, v); err != nil {
			rec.Status, rec.Reason = trace.StatusSkipped, err.Error()
			l.logger().WithField("variant", v.Name).WithError(err).Warn("Pocket not located. Skipping.")
		}
		bt.Record(rec)
	}
	return bt, nil
}
