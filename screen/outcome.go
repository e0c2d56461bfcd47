package screen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Outcome classifies a minimization log.
type Outcome string

const (
	OutcomeConverged    Outcome = "converged"
	OutcomeNotConverged Outcome = "not_converged"
	OutcomeUnknown      Outcome = "unknown" // no marker, or the log could not be read
)

// Markers are the exact, case-sensitive lines the minimization engine writes
// when it stops.
type Markers struct {
	Converged    string `yaml:"converged"`
	NotConverged string `yaml:"not_converged"`
}

// DefaultMarkers returns the GROMACS steepest-descent markers for Fmax < 100.
func DefaultMarkers() Markers {
	return Markers{
		Converged:    "Steepest Descents converged to Fmax < 100",
		NotConverged: "did not reach the requested Fmax < 100",
	}
}

// Validate rejects empty or identical markers.
func (m Markers) Validate() error {
	if m.Converged == "" || m.NotConverged == "" {
		return fmt.Errorf("both convergence markers must be non-empty")
	}
	if m.Converged == m.NotConverged {
		return fmt.Errorf("convergence markers must differ, both are %q", m.Converged)
	}
	return nil
}

// InterpretLines scans lines from the end toward the start and returns the
// outcome of the first marker met, so the chronologically last marker wins.
// A line carrying both markers counts as converged.
func InterpretLines(lines []string, m Markers) Outcome {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], m.Converged) {
			return OutcomeConverged
		}
		if strings.Contains(lines[i], m.NotConverged) {
			return OutcomeNotConverged
		}
	}
	return OutcomeUnknown
}

// InterpretLog reads r to the end and classifies it. A read error yields
// OutcomeUnknown together with an ErrUnreadableLog-wrapped error.
func InterpretLog(r io.Reader, m Markers) (Outcome, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return OutcomeUnknown, fmt.Errorf("%w: %v", ErrUnreadableLog, err)
	}
	return InterpretLines(lines, m), nil
}

// InterpretLogFile classifies the log at path. Missing or unreadable files
// are not fatal: they give OutcomeUnknown and an error for the caller to
// report.
func InterpretLogFile(path string, m Markers) (Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return OutcomeUnknown, fmt.Errorf("%w: %s: %v", ErrUnreadableLog, path, err)
	}
	defer func() { _ = f.Close() }()

	outcome, err := InterpretLog(f, m)
	if err != nil {
		return outcome, fmt.Errorf("%s: %w", path, err)
	}
	return outcome, nil
}
