package screen

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a sortable identifier for one pipeline invocation.
func NewRunID() string {
	return ulid.Make().String()
}

// BatchReporter owns the cross-variant status file of one pass.
//
// Write protocol: the header is written once when the reporter is created
// (truncating any previous file); afterwards every call appends exactly one
// block for one variant. The reporter is the file's only writer.
type BatchReporter struct {
	path  string
	runID string
	f     *os.File
}

// NewBatchReporter creates (or truncates) path and writes the header.
func NewBatchReporter(path, title, runID string) (*BatchReporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening batch summary %s: %w", path, err)
	}
	r := &BatchReporter{path: path, runID: runID, f: f}
	header := fmt.Sprintf("%s\n\nrun: %s\nstarted: %s\n\n", title, runID, time.Now().Format("02-01-2006 15:04:05"))
	if _, err := io.WriteString(f, header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing batch summary header: %w", err)
	}
	return r, nil
}

// Path returns the status file location.
func (r *BatchReporter) Path() string { return r.path }

// RunID returns the run identifier written in the header.
func (r *BatchReporter) RunID() string { return r.runID }

// Block appends one variant block: the folder name followed by indented
// lines and a blank separator line.
func (r *BatchReporter) Block(folder string, lines ...string) error {
	var b strings.Builder
	b.WriteString(folder)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString("   ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(r.f, b.String()); err != nil {
		return fmt.Errorf("appending to batch summary %s: %w", r.path, err)
	}
	return nil
}

// Minimization appends the terminal status of a variant's retry loop.
func (r *BatchReporter) Minimization(res *MinimizeResult) error {
	return r.Block(res.Variant.Name, string(res.Status())+": "+res.Describe())
}

// Selection appends the summary location and winner of a variant.
func (r *BatchReporter) Selection(v Variant, summaryPath string, sel *RankedSelection, logExt string) error {
	return r.Block(v.Name,
		"Summary saved in: "+summaryPath,
		fmt.Sprintf("Best replica: %s%s (Fmax=%.2f)", sel.Winner.Base, logExt, sel.Winner.Force),
	)
}

// Skipped flags a variant that produced no result.
func (r *BatchReporter) Skipped(v Variant, reason error) error {
	return r.Block(v.Name, "skipped: "+reason.Error())
}

// Close releases the file handle.
func (r *BatchReporter) Close() error {
	return r.f.Close()
}
