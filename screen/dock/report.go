package dock

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"

	"github.com/emsift/emsift/screen"
)

// rankHeaderLines precede the pose table of a rank file.
const rankHeaderLines = 4

// Format selects how a Report is rendered.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatASCII    Format = "ascii"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatMarkdown, FormatASCII:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want csv, markdown or ascii)", s)
}

// Ligand names one docked ligand: its rank file lives at
// <variant>/<Name>/<Name>.rnk and its report columns end in _<Label>.
type Ligand struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
}

// ReportConfig configures the docking report.
type ReportConfig struct {
	Ligands     []Ligand `yaml:"ligands"`
	Poses       int      `yaml:"poses"`        // pose numbers 1..Poses are reported
	VariantGlob string   `yaml:"variant_glob"` // empty uses the layout glob
	Format      Format   `yaml:"format"`
	Output      string   `yaml:"output"` // empty writes to stdout
}

// DefaultReportConfig reports the asparagine and glutamine runs over 200 poses.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		Ligands: []Ligand{
			{Name: "L-Asn_m1", Label: "Asn"},
			{Name: "L-Gln_m1", Label: "Gln"},
		},
		Poses:  200,
		Format: FormatCSV,
	}
}

// Validate checks the ligand list, pose count and format.
func (c ReportConfig) Validate() error {
	if len(c.Ligands) == 0 {
		return fmt.Errorf("report.ligands must not be empty")
	}
	for i, l := range c.Ligands {
		if strings.TrimSpace(l.Name) == "" || strings.TrimSpace(l.Label) == "" {
			return fmt.Errorf("report.ligands[%d] needs a name and a label", i)
		}
	}
	if c.Poses <= 0 {
		return fmt.Errorf("report.poses must be positive, got %d", c.Poses)
	}
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return fmt.Errorf("report.format: %w", err)
	}
	return nil
}

// RankFile holds the fitness score of every pose of one docking run.
type RankFile struct {
	Scores map[int]float64 // pose number -> score
}

// Score returns the score of pose, if present.
func (r *RankFile) Score(pose int) (float64, bool) {
	if r == nil {
		return 0, false
	}
	s, ok := r.Scores[pose]
	return s, ok
}

// ReadRankFile parses a rank table: after four header lines, whitespace
// separated rows whose first column is the pose number and second the
// score. Rows without a numeric pose number are skipped; for a repeated
// pose number the first row wins.
func ReadRankFile(r io.Reader) (*RankFile, error) {
	rf := &RankFile{Scores: make(map[int]float64)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if line <= rankHeaderLines {
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		pose, ok := parsePose(fields[0])
		if !ok {
			continue
		}
		if _, dup := rf.Scores[pose]; dup {
			continue
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		rf.Scores[pose] = score
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rf, nil
}

// parsePose accepts integral numbers, including "12.0".
func parsePose(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// ParseRankFile reads the rank file at path.
func ParseRankFile(path string) (*RankFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	rf, err := ReadRankFile(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rf, nil
}

// Column is one variant/ligand series of a report.
type Column struct {
	Variant string
	Ligand  Ligand
	Rank    *RankFile // nil when the rank file was missing or unreadable
}

// Header is "<variant>_<label>".
func (c Column) Header() string { return c.Variant + "_" + c.Ligand.Label }

// Report is the pose-by-column score table of a batch.
type Report struct {
	Poses   int
	Columns []Column
}

// BuildReport collects the rank files of every variant below root. Missing
// or unreadable rank files produce empty columns and are logged.
func BuildReport(root, glob string, cfg ReportConfig, log logrus.FieldLogger) (*Report, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	variants, err := screen.DiscoverVariants(root, glob)
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("no variant folders matching %q in %s", glob, root)
	}
	log.Infof("Found %d variant folders to process...", len(variants))

	rep := &Report{Poses: cfg.Poses}
	for _, v := range variants {
		log.WithField("variant", v.Name).Infof("Processing: %s", v.Name)
		for _, lig := range cfg.Ligands {
			col := Column{Variant: v.Name, Ligand: lig}
			path := filepath.Join(v.Dir, lig.Name, lig.Name+".rnk")
			rf, err := ParseRankFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				log.Warnf("File %s was not found and will be skipped.", path)
			case err != nil:
				log.WithError(err).Warnf("An error occurred while reading %s", path)
			default:
				col.Rank = rf
			}
			rep.Columns = append(rep.Columns, col)
		}
	}
	return rep, nil
}

// Table builds the go-pretty table of the report: a "Pose" column followed
// by one column per variant and ligand. Missing scores are empty cells.
func (r *Report) Table() table.Writer {
	t := table.NewWriter()
	header := table.Row{"Pose"}
	for _, c := range r.Columns {
		header = append(header, c.Header())
	}
	t.AppendHeader(header)
	for pose := 1; pose <= r.Poses; pose++ {
		row := table.Row{pose}
		for _, c := range r.Columns {
			if s, ok := c.Rank.Score(pose); ok {
				row = append(row, strconv.FormatFloat(s, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t
}

// Render writes the report in the given format.
func (r *Report) Render(w io.Writer, f Format) error {
	t := r.Table()
	var out string
	switch f {
	case FormatCSV:
		out = t.RenderCSV()
	case FormatMarkdown:
		out = t.RenderMarkdown()
	case FormatASCII:
		t.SetStyle(table.StyleLight)
		out = t.Render()
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}
