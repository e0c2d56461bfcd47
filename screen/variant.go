package screen

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Layout names the files a variant directory is expected to hold.
type Layout struct {
	VariantGlob   string `yaml:"variant_glob"`   // matched against entries of the batch root
	Prefix        string `yaml:"prefix"`         // attempt base name: <prefix> or <prefix>_<i>
	ParameterFile string `yaml:"parameter_file"` // never treated as an attempt artifact
	StructureFile string `yaml:"structure_file"`
	TopologyFile  string `yaml:"topology_file"`
	LogExt        string `yaml:"log_ext"`
}

// DefaultLayout returns the GROMACS steepest-descent layout used by the
// screening campaign.
func DefaultLayout() Layout {
	return Layout{
		VariantGlob:   "Variant*_monomer",
		Prefix:        "EM",
		ParameterFile: "EM.mdp",
		StructureFile: "box_solv_ion.gro",
		TopologyFile:  "topol.top",
		LogExt:        ".log",
	}
}

// Validate checks that the layout can be used to build file names.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.Prefix) == "" {
		return fmt.Errorf("layout.prefix must not be empty")
	}
	if strings.ContainsAny(l.Prefix, `/\`) {
		return fmt.Errorf("layout.prefix %q must not contain path separators", l.Prefix)
	}
	if !strings.HasPrefix(l.LogExt, ".") || len(l.LogExt) < 2 {
		return fmt.Errorf("layout.log_ext must start with '.', got %q", l.LogExt)
	}
	if !doublestar.ValidatePattern(l.VariantGlob) {
		return fmt.Errorf("layout.variant_glob %q is not a valid pattern", l.VariantGlob)
	}
	if strings.Contains(l.VariantGlob, "/") {
		return fmt.Errorf("layout.variant_glob %q must match a single path element", l.VariantGlob)
	}
	for name, v := range map[string]string{
		"parameter_file": l.ParameterFile,
		"structure_file": l.StructureFile,
		"topology_file":  l.TopologyFile,
	} {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("layout.%s must not be empty", name)
		}
	}
	return nil
}

// RequiredInputs lists the static files every variant must provide before a
// minimization attempt can be issued.
func (l Layout) RequiredInputs() []string {
	return []string{l.ParameterFile, l.StructureFile, l.TopologyFile}
}

// Variant is one candidate structure's working directory.
type Variant struct {
	Name string // directory name, e.g. "Variant12_monomer"
	ID   string // identifier embedded in Name, e.g. "12"
	Dir  string
}

// NewVariant builds a Variant for dir, extracting the identifier that the
// single '*' of pattern stands for. Without such a wildcard the ID is the
// directory name itself.
func NewVariant(dir, pattern string) Variant {
	name := filepath.Base(dir)
	return Variant{Name: name, ID: variantID(name, pattern), Dir: dir}
}

func variantID(name, pattern string) string {
	idx := strings.Index(pattern, "*")
	if idx < 0 || strings.ContainsAny(pattern[idx+1:], "*?[{") {
		return name
	}
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) || len(name) < len(prefix)+len(suffix) {
		return name
	}
	return name[len(prefix) : len(name)-len(suffix)]
}

// DiscoverVariants returns the directories directly under root whose names
// match pattern, in lexical order.
func DiscoverVariants(root, pattern string) ([]Variant, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBatchRootMissing, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBatchRootMissing, root)
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %q under %s: %w", pattern, root, err)
	}
	sort.Strings(matches)

	variants := make([]Variant, 0, len(matches))
	for _, m := range matches {
		dir := filepath.Join(root, m)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		variants = append(variants, NewVariant(dir, pattern))
	}
	return variants, nil
}

// MissingInputs returns the required input files absent from dir.
func MissingInputs(dir string, l Layout) []string {
	var missing []string
	for _, name := range l.RequiredInputs() {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Attempt identifies one minimization run of a variant. Index 0 is the
// baseline; retries are numbered from 1.
type Attempt struct {
	Variant string
	Index   int
}

// AttemptBase returns the file base name for the index-th attempt.
func AttemptBase(prefix string, index int) string {
	if index <= 0 {
		return prefix
	}
	return prefix + "_" + strconv.Itoa(index)
}

// ParseAttemptBase reports whether base follows the attempt naming
// convention for prefix and, if so, its attempt index.
func ParseAttemptBase(prefix, base string) (int, bool) {
	if base == prefix {
		return 0, true
	}
	rest, ok := strings.CutPrefix(base, prefix+"_")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// artifactPattern matches every file belonging to some attempt of prefix:
// <prefix>.<ext> or <prefix>_<digits>.<ext>.
func artifactPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `(?:_\d+)?\..+$`)
}

// stripExt drops the last extension, leaving names without one untouched.
func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// escapeGlob quotes the doublestar metacharacters in s.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
