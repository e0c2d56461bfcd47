package pocket

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrNoLigand reports that the ligand selector matched no atom.
	ErrNoLigand = errors.New("ligand not found")
	// ErrNoPocketCA reports that the pocket around the ligand holds no CA atom.
	ErrNoPocketCA = errors.New("no CA atoms near the ligand")
)

// LigandSelector picks the bound ligand by HETATM chain, name and number.
type LigandSelector struct {
	Chain   string `yaml:"chain"`
	ResName string `yaml:"resname"`
	ResSeq  int    `yaml:"resseq"`
}

// Match reports whether a is a ligand atom.
func (l LigandSelector) Match(a Atom) bool {
	return a.Het && a.Chain == l.Chain && a.ResName == l.ResName && a.ResSeq == l.ResSeq
}

func (l LigandSelector) String() string {
	return fmt.Sprintf("%s %d (chain %s)", l.ResName, l.ResSeq, l.Chain)
}

// Options are the geometric parameters of Locate.
type Options struct {
	Ligand       LigandSelector `yaml:"ligand"`
	Solvent      []string       `yaml:"solvent"`       // residue names removed before selection
	LigandRadius float64        `yaml:"ligand_radius"` // reference pocket: residues within this distance of the ligand
	ModelRadius  float64        `yaml:"model_radius"`  // model atoms within this distance of the reference pocket
	ActiveRadius float64        `yaml:"active_radius"` // active site: residues within this distance of the centroid
}

// DefaultOptions selects ASN 401 of chain A with 5 Å pocket radii and an
// 8 Å active-site radius.
func DefaultOptions() Options {
	return Options{
		Ligand:       LigandSelector{Chain: "A", ResName: "ASN", ResSeq: 401},
		Solvent:      []string{"HOH", "WAT"},
		LigandRadius: 5.0,
		ModelRadius:  5.0,
		ActiveRadius: 8.0,
	}
}

// Validate checks the radii and ligand selector.
func (o Options) Validate() error {
	if o.Ligand.ResName == "" {
		return fmt.Errorf("pocket.ligand.resname must not be empty")
	}
	for name, r := range map[string]float64{
		"ligand_radius": o.LigandRadius,
		"model_radius":  o.ModelRadius,
		"active_radius": o.ActiveRadius,
	} {
		if r <= 0 {
			return fmt.Errorf("pocket.%s must be positive, got %g", name, r)
		}
	}
	return nil
}

// ActiveResidue is one CA atom of the active site.
type ActiveResidue struct {
	ResID   string // residue number with insertion code
	ResName string
	Pos     Vec3
}

// Tag is the residue label used by the docking engine, e.g. "ASN52".
func (r ActiveResidue) Tag() string { return r.ResName + r.ResID }

// Pocket is the characterized binding site of one model.
type Pocket struct {
	RMSD         float64
	Pairs        int
	LigandAtoms  int
	RefPocket    int // atoms in the reference pocket
	ModelPocket  int // model atoms near the reference pocket
	NearAtoms    int // atoms of the whole model residues in the pocket
	CAAtoms      int // CA atoms averaged into the centroid
	Centroid     Vec3
	Active       []ActiveResidue
	ActiveRadius float64
}

// Locate superposes ref onto model (so every coordinate stays in the
// model's frame), selects the ligand and derives the pocket centroid and
// active site:
//
//	refPocket  = whole polymer residues within LigandRadius of the ligand
//	nearModel  = whole polymer residues of the model atoms within ModelRadius of refPocket
//	centroid   = mean of the CA atoms of nearModel
//	active     = CA atoms of whole protein residues within ActiveRadius of centroid
//
// ref and model are not modified.
func Locate(ref, model *Structure, opts Options) (*Pocket, error) {
	aln, err := Superpose(model, ref)
	if err != nil {
		return nil, err
	}
	refT := aln.Transform.ApplyTo(ref)
	refT.RemoveResidues(opts.Solvent...)
	mdl := model.Clone()
	mdl.RemoveResidues(opts.Solvent...)

	p := &Pocket{RMSD: aln.RMSD, Pairs: aln.Pairs, ActiveRadius: opts.ActiveRadius}

	both := append(append([]Atom{}, refT.Atoms...), mdl.Atoms...)
	lig := filter(both, opts.Ligand.Match)
	p.LigandAtoms = len(lig)
	if len(lig) == 0 {
		return p, fmt.Errorf("%w: %s", ErrNoLigand, opts.Ligand)
	}

	// The reference pocket spans both structures and is expanded per structure.
	refPocket := append(
		byResidue(refT.Atoms, within(filter(refT.Atoms, IsPolymer), lig, opts.LigandRadius)),
		byResidue(mdl.Atoms, within(filter(mdl.Atoms, IsPolymer), lig, opts.LigandRadius))...)
	p.RefPocket = len(refPocket)

	modelPocket := within(mdl.Atoms, refPocket, opts.ModelRadius)
	p.ModelPocket = len(modelPocket)

	near := byResidue(mdl.Atoms, filter(modelPocket, IsPolymer))
	p.NearAtoms = len(near)

	ca := filter(near, isCA)
	p.CAAtoms = len(ca)
	if len(ca) == 0 {
		return p, ErrNoPocketCA
	}
	pos := make([]Vec3, len(ca))
	for i, a := range ca {
		pos[i] = a.Pos
	}
	p.Centroid = centroid(pos)

	center := []Atom{{Pos: p.Centroid}}
	active := byResidue(mdl.Atoms, within(mdl.Atoms, center, opts.ActiveRadius))
	for _, a := range active {
		if IsProtein(a) && isCA(a) {
			p.Active = append(p.Active, ActiveResidue{ResID: a.ResidueID(), ResName: a.ResName, Pos: a.Pos})
		}
	}
	return p, nil
}

func isCA(a Atom) bool { return a.Name == "CA" }

func filter(atoms []Atom, keep func(Atom) bool) []Atom {
	var out []Atom
	for _, a := range atoms {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// within returns the atoms of candidates closer than r to any atom of probes.
func within(candidates, probes []Atom, r float64) []Atom {
	if len(probes) == 0 {
		return nil
	}
	lo, hi := bounds(probes, r)
	r2 := r * r
	var out []Atom
	for _, a := range candidates {
		if !inBox(a.Pos, lo, hi) {
			continue
		}
		for _, b := range probes {
			if a.Pos.Dist2(b.Pos) <= r2 {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func bounds(atoms []Atom, pad float64) (lo, hi Vec3) {
	lo, hi = atoms[0].Pos, atoms[0].Pos
	for _, a := range atoms[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], a.Pos[i])
			hi[i] = max(hi[i], a.Pos[i])
		}
	}
	for i := 0; i < 3; i++ {
		lo[i] -= pad
		hi[i] += pad
	}
	return lo, hi
}

func inBox(p, lo, hi Vec3) bool {
	return p[0] >= lo[0] && p[0] <= hi[0] &&
		p[1] >= lo[1] && p[1] <= hi[1] &&
		p[2] >= lo[2] && p[2] <= hi[2]
}

// byResidue expands sel to every atom of all that shares a residue with
// some atom of sel, preserving the order of all.
func byResidue(all, sel []Atom) []Atom {
	keys := make(map[ResidueKey]bool, len(sel))
	for _, a := range sel {
		keys[a.Residue()] = true
	}
	var out []Atom
	for _, a := range all {
		if keys[a.Residue()] {
			out = append(out, a)
		}
	}
	return out
}

// FormatCoordinates renders the centroid and the active-site table.
func FormatCoordinates(p *Pocket) string {
	var b strings.Builder
	b.WriteString("Centroid coordinates X, Y and Z:\n")
	fmt.Fprintf(&b, "%10.3f %10.3f %10.3f\n\n", p.Centroid[0], p.Centroid[1], p.Centroid[2])
	fmt.Fprintf(&b, "%d amino acids within an %g Å radius of the centroid:\n\n", len(p.Active), p.ActiveRadius)
	fmt.Fprintf(&b, "%5s %5s %10s %10s %10s\n", "Resi", "Resn", "X", "Y", "Z")
	b.WriteString(strings.Repeat("-", 45) + "\n")
	for _, r := range p.Active {
		fmt.Fprintf(&b, "%5s %5s %10.3f %10.3f %10.3f\n", r.ResID, r.ResName, r.Pos[0], r.Pos[1], r.Pos[2])
	}
	b.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	return b.String()
}

// FormatActiveSite renders the docking engine's active-residue list: one
// header line and the unique residue tags in table order.
func FormatActiveSite(p *Pocket) string {
	seen := make(map[string]bool)
	var tags []string
	for _, r := range p.Active {
		if t := r.Tag(); !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	return "> <Gold.Protein.ActiveResidues>\n" + strings.Join(tags, " ") + "\n"
}

// WriteCoordinates writes FormatCoordinates(p) to path.
func WriteCoordinates(path string, p *Pocket) error {
	if err := os.WriteFile(path, []byte(FormatCoordinates(p)), 0o644); err != nil {
		return fmt.Errorf("writing coordinates: %w", err)
	}
	return nil
}

// WriteActiveSite writes FormatActiveSite(p) to path.
func WriteActiveSite(path string, p *Pocket) error {
	if err := os.WriteFile(path, []byte(FormatActiveSite(p)), 0o644); err != nil {
		return fmt.Errorf("writing active site: %w", err)
	}
	return nil
}
