package screen

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsift/emsift/screen/internal/testutil"
)

func TestInterpretLines_LastMarkerWins(t *testing.T) {
	m := DefaultMarkers()
	tests := []struct {
		name  string
		lines []string
		want  Outcome
	}{
		{
			name:  "not converged then converged",
			lines: []string{"step 0", "did not reach the requested Fmax < 100", "step 1000", "Steepest Descents converged to Fmax < 100", "Maximum force = 9.1"},
			want:  OutcomeConverged,
		},
		{
			name:  "converged then not converged",
			lines: []string{"Steepest Descents converged to Fmax < 100", "restart", "Steepest Descents did not reach the requested Fmax < 100 in 50001 steps."},
			want:  OutcomeNotConverged,
		},
		{
			name:  "single converged marker",
			lines: []string{"header", "Steepest Descents converged to Fmax < 100 in 812 steps"},
			want:  OutcomeConverged,
		},
		{
			name:  "neither marker",
			lines: []string{"header", "Steepest Descents converged to Fmax < 10 in 5 steps", "done"},
			want:  OutcomeUnknown,
		},
		{
			name:  "case sensitive",
			lines: []string{"steepest descents converged to fmax < 100"},
			want:  OutcomeUnknown,
		},
		{
			name:  "empty log",
			lines: nil,
			want:  OutcomeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretLines(tt.lines, m))
		})
	}
}

func TestInterpretLog_LongLinesAreRead(t *testing.T) {
	// GIVEN a log with a line far longer than bufio's default token size
	text := strings.Repeat("x", 200*1024) + "\nSteepest Descents converged to Fmax < 100\n"

	// WHEN interpreted
	got, err := InterpretLog(strings.NewReader(text), DefaultMarkers())

	// THEN the marker after the long line is still found
	require.NoError(t, err)
	assert.Equal(t, OutcomeConverged, got)
}

func TestInterpretLogFile_MissingFile_UnknownWithError(t *testing.T) {
	// GIVEN a path that does not exist
	path := filepath.Join(t.TempDir(), "EM.log")

	// WHEN interpreted
	got, err := InterpretLogFile(path, DefaultMarkers())

	// THEN the outcome is Unknown and the error is reported, not fatal
	assert.Equal(t, OutcomeUnknown, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadableLog))
}

func TestInterpretLogFile_SyntheticLogs(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "ok.log", testutil.ConvergedLog(42.5))
	testutil.WriteFile(t, dir, "bad.log", testutil.NotConvergedLog(512.25))

	got, err := InterpretLogFile(filepath.Join(dir, "ok.log"), DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConverged, got)

	got, err = InterpretLogFile(filepath.Join(dir, "bad.log"), DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotConverged, got)
}

func TestMarkers_Validate(t *testing.T) {
	assert.NoError(t, DefaultMarkers().Validate())
	assert.Error(t, Markers{Converged: "x"}.Validate())
	assert.Error(t, Markers{Converged: "x", NotConverged: "x"}.Validate())
}
