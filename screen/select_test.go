package screen

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsift/emsift/screen/internal/testutil"
	"github.com/emsift/emsift/screen/trace"
)

func newTestSelector(cfg SelectConfig) *Selector {
	logger, _ := logtest.NewNullLogger()
	s := NewSelector(DefaultLayout(), cfg)
	s.Log = logger
	return s
}

func TestSelectVariant_WritesSummaryAndPromotes(t *testing.T) {
	// GIVEN a variant with three attempts
	dir := testutil.NewReadyVariant(t, t.TempDir(), "Variant5_monomer")
	testutil.WriteFile(t, dir, "EM.log", testutil.NotConvergedLog(300))
	testutil.WriteFile(t, dir, "EM_1.log", testutil.NotConvergedLog(120))
	testutil.WriteFile(t, dir, "EM_2.log", testutil.ConvergedLog(95.5))

	// WHEN selected
	res := newTestSelector(DefaultSelectConfig()).SelectVariant(NewVariant(dir, "Variant*_monomer"))

	// THEN the summary names the winner and the winner is canonical
	require.NoError(t, res.Err)
	require.NotNil(t, res.Selection)
	assert.Equal(t, "EM_2", res.Selection.Winner.Base)
	assert.Equal(t, filepath.Join(dir, "forces_summary.txt"), res.SummaryPath)
	summary := testutil.ReadFile(t, dir, "forces_summary.txt")
	assert.Contains(t, summary, "Best replica: EM_2.log  (Maximum force = 95.5000 kJ/mol/nm)")
	require.NotNil(t, res.Promotion)
	assert.Equal(t, []string{"EM.log", "EM.mdp", "box_solv_ion.gro", "forces_summary.txt", "topol.top"}, testutil.ListFiles(t, dir))
}

func TestSelectVariant_PromotionDisabled_KeepsFiles(t *testing.T) {
	dir := testutil.NewReadyVariant(t, t.TempDir(), "Variant6_monomer")
	testutil.WriteFile(t, dir, "EM.log", testutil.NotConvergedLog(300))
	testutil.WriteFile(t, dir, "EM_1.log", testutil.ConvergedLog(10))
	cfg := DefaultSelectConfig()
	cfg.Promote = false

	res := newTestSelector(cfg).SelectVariant(NewVariant(dir, "Variant*_monomer"))

	require.NoError(t, res.Err)
	assert.Nil(t, res.Promotion)
	assert.Contains(t, testutil.ListFiles(t, dir), "EM_1.log")
}

func TestSelectVariant_NoForces_Skipped(t *testing.T) {
	dir := testutil.NewReadyVariant(t, t.TempDir(), "Variant7_monomer")
	testutil.WriteFile(t, dir, "EM.log", "segmentation fault\n")

	res := newTestSelector(DefaultSelectConfig()).SelectVariant(NewVariant(dir, "Variant*_monomer"))

	assert.Nil(t, res.Selection)
	assert.True(t, errors.Is(res.Err, ErrNoMetricFound))
	assert.NotContains(t, testutil.ListFiles(t, dir), "forces_summary.txt")
	assert.Contains(t, testutil.ListFiles(t, dir), "EM.log", "nothing is deleted without a winner")
}

func TestSelectBatch_ReportsEveryVariant(t *testing.T) {
	// GIVEN two variants with forces and one without
	root := t.TempDir()
	a := testutil.NewReadyVariant(t, root, "Variant1_monomer")
	testutil.WriteFile(t, a, "EM.log", testutil.NotConvergedLog(300))
	testutil.WriteFile(t, a, "EM_1.log", testutil.ConvergedLog(42))
	b := testutil.NewReadyVariant(t, root, "Variant2_monomer")
	testutil.WriteFile(t, b, "EM.log", testutil.ConvergedLog(17.25))
	testutil.NewReadyVariant(t, root, "Variant3_monomer")

	reporter, err := NewBatchReporter(filepath.Join(root, "replicated_status.txt"), "Best replica summary", NewRunID())
	require.NoError(t, err)

	// WHEN the batch is selected
	bt, err := newTestSelector(DefaultSelectConfig()).SelectBatch(root, reporter)
	require.NoError(t, err)
	require.NoError(t, reporter.Close())

	// THEN each variant has a record and a block in the status file
	require.Len(t, bt.Records, 3)
	assert.Equal(t, trace.StatusCompleted, bt.Records[0].Status)
	assert.Equal(t, "EM_1", bt.Records[0].Winner)
	assert.Equal(t, trace.StatusCompleted, bt.Records[1].Status)
	assert.Equal(t, trace.StatusSkipped, bt.Records[2].Status)

	sum := trace.Summarize(bt)
	assert.Equal(t, "Variant2_monomer", sum.BestVariant)
	assert.InDelta(t, 17.25, sum.BestForce, 1e-9)

	status := testutil.ReadFile(t, root, "replicated_status.txt")
	assert.True(t, strings.HasPrefix(status, "Best replica summary\n\nrun: "))
	assert.Contains(t, status, "Variant1_monomer\n   Summary saved in: "+filepath.Join(a, "forces_summary.txt")+"\n   Best replica: EM_1.log (Fmax=42.00)\n")
	assert.Contains(t, status, "Variant2_monomer\n   Summary saved in: ")
	assert.Contains(t, status, "Best replica: EM.log (Fmax=17.25)")
	assert.Contains(t, status, "Variant3_monomer\n   skipped: ")
}

func TestSelectConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSelectConfig().Validate())
	cfg := DefaultSelectConfig()
	cfg.SummaryFile = " "
	assert.Error(t, cfg.Validate())
}
