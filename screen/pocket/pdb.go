// Package pocket locates the ligand-binding pocket of a minimized variant by
// superposing it onto a ligand-bound reference structure, and writes the
// pocket centroid and active-site residue list consumed by the docking stage.
package pocket

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Vec3 is a Cartesian coordinate in Ångström.
type Vec3 [3]float64

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }

// Dist2 returns the squared distance between v and w.
func (v Vec3) Dist2(w Vec3) float64 {
	d := v.Sub(w)
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
}

// Atom is one ATOM or HETATM record.
type Atom struct {
	Serial  int
	Name    string
	AltLoc  string
	ResName string
	Chain   string
	ResSeq  int
	ICode   string
	Pos     Vec3
	Element string
	Het     bool
}

// ResidueKey identifies a residue within a structure.
type ResidueKey struct {
	Chain  string
	ResSeq int
	ICode  string
}

// Residue returns the key of the residue a belongs to.
func (a Atom) Residue() ResidueKey {
	return ResidueKey{Chain: a.Chain, ResSeq: a.ResSeq, ICode: a.ICode}
}

// ResidueID is the residue number with its insertion code, e.g. "52A".
func (a Atom) ResidueID() string {
	return strconv.Itoa(a.ResSeq) + a.ICode
}

// Structure is the first model of a PDB file.
type Structure struct {
	Name  string
	Atoms []Atom
}

// ReadPDB parses ATOM and HETATM records up to the first ENDMDL. Other
// records are ignored.
func ReadPDB(r io.Reader) (*Structure, error) {
	s := &Structure{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		rec := strings.TrimSpace(field(text, 0, 6))
		switch rec {
		case "ENDMDL":
			return s, nil
		case "ATOM", "HETATM":
			a, err := parseAtom(text)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			s.Atoms = append(s.Atoms, a)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading PDB: %w", err)
	}
	return s, nil
}

// LoadPDB reads the structure stored at path.
func LoadPDB(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	s, err := ReadPDB(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

func parseAtom(line string) (Atom, error) {
	a := Atom{
		Het:     strings.HasPrefix(line, "HETATM"),
		Name:    strings.TrimSpace(field(line, 12, 16)),
		AltLoc:  strings.TrimSpace(field(line, 16, 17)),
		ResName: strings.TrimSpace(field(line, 17, 20)),
		Chain:   strings.TrimSpace(field(line, 21, 22)),
		ICode:   strings.TrimSpace(field(line, 26, 27)),
		Element: strings.TrimSpace(field(line, 76, 78)),
	}
	if s := strings.TrimSpace(field(line, 6, 11)); s != "" {
		// Serial numbers overflow into hex or asterisks in large systems.
		if n, err := strconv.Atoi(s); err == nil {
			a.Serial = n
		}
	}
	seq, err := strconv.Atoi(strings.TrimSpace(field(line, 22, 26)))
	if err != nil {
		return a, fmt.Errorf("residue number %q: %w", field(line, 22, 26), err)
	}
	a.ResSeq = seq
	for i, span := range [3][2]int{{30, 38}, {38, 46}, {46, 54}} {
		v, err := strconv.ParseFloat(strings.TrimSpace(field(line, span[0], span[1])), 64)
		if err != nil {
			return a, fmt.Errorf("coordinate %q: %w", field(line, span[0], span[1]), err)
		}
		a.Pos[i] = v
	}
	return a, nil
}

// field returns line[from:to] clipped to the line length.
func field(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	if to > len(line) {
		to = len(line)
	}
	return line[from:to]
}

// RemoveResidues drops every atom whose residue name is in names.
func (s *Structure) RemoveResidues(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := s.Atoms[:0]
	for _, a := range s.Atoms {
		if !drop[a.ResName] {
			kept = append(kept, a)
		}
	}
	s.Atoms = kept
}

// Clone returns a deep copy of s.
func (s *Structure) Clone() *Structure {
	c := &Structure{Name: s.Name, Atoms: make([]Atom, len(s.Atoms))}
	copy(c.Atoms, s.Atoms)
	return c
}

var aminoAcids = map[string]bool{
	"ALA": true, "ARG": true, "ASN": true, "ASP": true, "CYS": true,
	"GLN": true, "GLU": true, "GLY": true, "HIS": true, "ILE": true,
	"LEU": true, "LYS": true, "MET": true, "PHE": true, "PRO": true,
	"SER": true, "THR": true, "TRP": true, "TYR": true, "VAL": true,
	// protonation and disulfide variants written by force-field tools
	"HID": true, "HIE": true, "HIP": true, "HSD": true, "HSE": true, "HSP": true,
	"CYX": true, "CYM": true, "ASH": true, "GLH": true, "LYN": true, "MSE": true,
}

var nonPolymer = map[string]bool{
	"HOH": true, "WAT": true, "SOL": true, "TIP3": true,
	"NA": true, "CL": true, "K": true, "MG": true, "CA2": true, "ZN": true,
}

// IsPolymer reports whether a belongs to the macromolecule rather than to a
// ligand, ion or solvent. Solvent and ions written as ATOM records by
// simulation tools are excluded by residue name.
func IsPolymer(a Atom) bool { return !a.Het && !nonPolymer[a.ResName] }

// IsProtein reports whether a is a polymer atom of an amino-acid residue.
func IsProtein(a Atom) bool { return !a.Het && aminoAcids[a.ResName] }
