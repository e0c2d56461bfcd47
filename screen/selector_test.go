package screen

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsift/emsift/screen/internal/testutil"
)

func TestParseMaxForce(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"scientific", "Maximum force     =  9.10000000e+00 on atom 12", 9.1, true},
		{"plain decimal", "Maximum force = 12.5", 12.5, true},
		{"no spaces", "Maximum force=3", 3, true},
		{"first occurrence wins", "Maximum force = 1.0\nMaximum force = 0.5", 1.0, true},
		{"absent", "Norm of force = 2.0", 0, false},
		{"garbage value", "Maximum force = e+-", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMaxForce([]byte(tt.in))
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExtractForces_ScansAttemptLogsOnly(t *testing.T) {
	// GIVEN attempt logs, a log without a force and unrelated files
	dir := testutil.NewReadyVariant(t, t.TempDir(), "Variant1_monomer")
	testutil.WriteFile(t, dir, "EM.log", testutil.NotConvergedLog(512))
	testutil.WriteFile(t, dir, "EM_1.log", testutil.NotConvergedLog(230.5))
	testutil.WriteFile(t, dir, "EM_2.log", "crashed before the first step\n")
	testutil.WriteFile(t, dir, "EM_3.log", testutil.ConvergedLog(88.25))
	testutil.WriteFile(t, dir, "EM_best.log", testutil.ConvergedLog(1))
	testutil.WriteFile(t, dir, "EM_1.gro", "Maximum force = 0.1\n")
	testutil.WriteFile(t, dir, "md.log", testutil.ConvergedLog(2))

	// WHEN forces are extracted
	got, err := ExtractForces(dir, DefaultLayout())

	// THEN only well-named logs with a force contribute, in listing order
	require.NoError(t, err)
	want := []ForceRecord{
		{Base: "EM", Force: 512},
		{Base: "EM_1", Force: 230.5},
		{Base: "EM_3", Force: 88.25},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractForces_NoLogs_Empty(t *testing.T) {
	dir := testutil.NewReadyVariant(t, t.TempDir(), "Variant2_monomer")
	got, err := ExtractForces(dir, DefaultLayout())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_LowestForceWins_TiesKeepDiscoveryOrder(t *testing.T) {
	// GIVEN forces {A: 12.5, B: 9.1, C: 9.1}
	in := []ForceRecord{{"A", 12.5}, {"B", 9.1}, {"C", 9.1}}

	// WHEN ranked
	sel, err := Rank(in)

	// THEN B wins and the ranking is [B, C, A]
	require.NoError(t, err)
	assert.Equal(t, "B", sel.Winner.Base)
	want := []ForceRecord{{"B", 9.1}, {"C", 9.1}, {"A", 12.5}}
	if diff := cmp.Diff(want, sel.Records); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	// AND the input is left untouched
	assert.Equal(t, "A", in[0].Base)
}

func TestRank_Empty_NoMetricFound(t *testing.T) {
	_, err := Rank(nil)
	assert.True(t, errors.Is(err, ErrNoMetricFound))
}

func TestRank_WinnerIsMinimum(t *testing.T) {
	in := []ForceRecord{{"EM", 310}, {"EM_1", 45.5}, {"EM_2", 87}, {"EM_3", 45.6}, {"EM_4", 1e3}}
	sel, err := Rank(in)
	require.NoError(t, err)
	for _, r := range in {
		assert.LessOrEqual(t, sel.Winner.Force, r.Force)
	}
	assert.Len(t, sel.Records, len(in))
}

func TestFormatSummary_Layout(t *testing.T) {
	sel, err := Rank([]ForceRecord{{"EM", 150}, {"EM_1", 12.34567}})
	require.NoError(t, err)

	got := FormatSummary(sel, ".log")

	want := "Summary of maximum forces (kJ/mol/nm):\n\n" +
		"EM_1.log: 12.3457\n" +
		"EM.log: 150.0000\n" +
		"\nBest replica: EM_1.log  (Maximum force = 12.3457 kJ/mol/nm)\n"
	assert.Equal(t, want, got)
}

func TestWriteSummary_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forces_summary.txt")
	testutil.WriteFile(t, dir, "forces_summary.txt", "stale content that is much longer than the new summary will be\n"+strings.Repeat("x", 500))

	sel, err := Rank([]ForceRecord{{"EM", 1}})
	require.NoError(t, err)
	require.NoError(t, WriteSummary(path, sel, ".log"))

	got := testutil.ReadFile(t, dir, "forces_summary.txt")
	assert.NotContains(t, got, "stale")
	assert.True(t, strings.HasPrefix(got, "Summary of maximum forces"))
}
