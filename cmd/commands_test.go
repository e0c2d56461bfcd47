package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsift/emsift/screen"
	"github.com/emsift/emsift/screen/trace"
)

// recordingRunner counts invocations and never touches the filesystem.
type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(_ context.Context, _ string, args ...string) (screen.CommandResult, error) {
	r.calls = append(r.calls, append([]string(nil), args...))
	return screen.CommandResult{}, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func emLog(marker string, force float64) string {
	return fmt.Sprintf("Started mdrun on rank 0\n%s in 812 steps\nMaximum force     =  %.8e on atom 17\n", marker, force)
}

// newBatch creates root with one converged variant holding every static input.
func newBatch(t *testing.T) (root string, cfg Config) {
	t.Helper()
	root = t.TempDir()
	cfg = DefaultConfig()
	cfg.Root = root
	dir := filepath.Join(root, "Variant1_monomer")
	for _, f := range []string{"EM.mdp", "box_solv_ion.gro", "topol.top"} {
		writeFile(t, dir, f, "; "+f+"\n")
	}
	writeFile(t, dir, "EM.log", emLog(cfg.Minimize.Markers.Converged, 95.5))
	return root, cfg
}

func TestRunMinimize_ConvergedBaseline_WritesStatusFile(t *testing.T) {
	// GIVEN a batch whose only variant already converged
	root, cfg := newBatch(t)
	runner := &recordingRunner{}

	// WHEN the minimize command body runs
	bt, err := runMinimize(context.Background(), cfg, runner)

	// THEN no tool is invoked and the status file records the variant
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
	require.Len(t, bt.Records, 1)
	assert.Equal(t, trace.StatusCompleted, bt.Records[0].Status)
	assert.Equal(t, trace.StageMinimize, bt.Stage)

	status, err := os.ReadFile(filepath.Join(root, cfg.Minimize.StatusFile))
	require.NoError(t, err)
	assert.Contains(t, string(status), "Variant1_monomer")
}

func TestRunMinimize_MissingRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = filepath.Join(t.TempDir(), "absent")

	_, err := runMinimize(context.Background(), cfg, &recordingRunner{})

	assert.ErrorIs(t, err, screen.ErrBatchRootMissing)
}

func TestRunSelect_PromotesWinner(t *testing.T) {
	// GIVEN a variant with a baseline and one better retry
	root, cfg := newBatch(t)
	dir := filepath.Join(root, "Variant1_monomer")
	writeFile(t, dir, "EM_1.log", emLog(cfg.Minimize.Markers.Converged, 42.0))
	writeFile(t, dir, "EM_1.gro", "retry structure\n")

	// WHEN the select command body runs
	bt, err := runSelect(cfg)

	// THEN the retry becomes the canonical attempt
	require.NoError(t, err)
	s := trace.Summarize(bt)
	assert.Equal(t, 1, s.Completed())
	assert.Equal(t, "Variant1_monomer", s.BestVariant)
	assert.Equal(t, 42.0, s.BestForce)

	gro, err := os.ReadFile(filepath.Join(dir, "EM.gro"))
	require.NoError(t, err)
	assert.Equal(t, "retry structure\n", string(gro))
	assert.NoFileExists(t, filepath.Join(dir, "EM_1.log"))
	assert.FileExists(t, filepath.Join(dir, cfg.Select.SummaryFile))
	assert.FileExists(t, filepath.Join(root, cfg.Select.StatusFile))
}

func TestRunPocket_RequiresReference(t *testing.T) {
	_, cfg := newBatch(t)

	_, err := runPocket(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference")
}

func TestRunReport_WritesCSV(t *testing.T) {
	// GIVEN one variant with a rank file for the first ligand only
	root, cfg := newBatch(t)
	cfg.Report.Poses = 2
	writeFile(t, filepath.Join(root, "Variant1_monomer"), "L-Asn_m1/L-Asn_m1.rnk",
		"# header\n#\n#\n  Mol No  Score\n      1   50.5\n      2   40\n")

	// WHEN the report is written to stdout
	var out bytes.Buffer
	err := runReport(cfg, &out)

	// THEN each pose is one row with an empty cell for the missing ligand
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.EqualFold("Pose,Variant1_monomer_Asn,Variant1_monomer_Gln", lines[0]), lines[0])
	assert.Equal(t, "1,50.5,", lines[1])
	assert.Equal(t, "2,40,", lines[2])
}

func TestRunReport_ToFile(t *testing.T) {
	root, cfg := newBatch(t)
	cfg.Report.Output = filepath.Join(root, "scores.md")
	cfg.Report.Format = "markdown"

	var out bytes.Buffer
	require.NoError(t, runReport(cfg, &out))

	assert.Empty(t, out.String())
	data, err := os.ReadFile(cfg.Report.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "|")
}

func TestRunReport_RejectsUnknownFormat(t *testing.T) {
	_, cfg := newBatch(t)
	cfg.Report.Format = "pdf"

	assert.Error(t, runReport(cfg, &bytes.Buffer{}))
}
