package screen

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// RankedSelection orders a variant's force records ascending; Winner is the
// first record, i.e. the lowest force, ties going to the earliest discovered.
type RankedSelection struct {
	Records []ForceRecord
	Winner  ForceRecord
}

// Rank sorts records by force without disturbing the discovery order of
// equal values. It returns ErrNoMetricFound for an empty input.
func Rank(records []ForceRecord) (*RankedSelection, error) {
	if len(records) == 0 {
		return nil, ErrNoMetricFound
	}
	ranked := make([]ForceRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Force < ranked[j].Force
	})
	return &RankedSelection{Records: ranked, Winner: ranked[0]}, nil
}

// FormatSummary renders the per-variant forces summary.
func FormatSummary(sel *RankedSelection, logExt string) string {
	var b strings.Builder
	b.WriteString("Summary of maximum forces (kJ/mol/nm):\n\n")
	for _, r := range sel.Records {
		fmt.Fprintf(&b, "%s%s: %.4f\n", r.Base, logExt, r.Force)
	}
	fmt.Fprintf(&b, "\nBest replica: %s%s  (Maximum force = %.4f kJ/mol/nm)\n", sel.Winner.Base, logExt, sel.Winner.Force)
	return b.String()
}

// WriteSummary writes FormatSummary's output to path, replacing any
// previous summary.
func WriteSummary(path string, sel *RankedSelection, logExt string) error {
	if err := os.WriteFile(path, []byte(FormatSummary(sel, logExt)), 0o644); err != nil {
		return fmt.Errorf("writing forces summary: %w", err)
	}
	return nil
}
