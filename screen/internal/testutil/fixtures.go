// Package testutil provides shared test infrastructure for the screen
// packages: variant directories on disk and synthetic minimization logs.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Marker lines written by the minimization engine.
const (
	ConvergedMarker    = "Steepest Descents converged to Fmax < 100 in 1234 steps"
	NotConvergedMarker = "Energy minimization reached the maximum number of steps before the forces\nreached the requested precision Fmax < 100.\nSteepest Descents did not reach the requested Fmax < 100 in 50001 steps."
)

// RequiredInputs are the static files of the default layout.
var RequiredInputs = []string{"EM.mdp", "box_solv_ion.gro", "topol.top"}

// NewVariantDir creates root/name holding the given files with placeholder
// content, and returns its path.
func NewVariantDir(t *testing.T, root, name string, files ...string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating variant dir: %v", err)
	}
	for _, f := range files {
		WriteFile(t, dir, f, "; "+f+"\n")
	}
	return dir
}

// NewReadyVariant creates a variant directory holding every required input.
func NewReadyVariant(t *testing.T, root, name string) string {
	t.Helper()
	return NewVariantDir(t, root, name, RequiredInputs...)
}

// WriteFile writes content to dir/name.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// ReadFile returns the content of dir/name.
func ReadFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

// ConvergedLog is a minimization log whose last marker reports convergence.
func ConvergedLog(force float64) string {
	return minimizationLog(ConvergedMarker, force)
}

// NotConvergedLog is a minimization log whose last marker reports failure.
func NotConvergedLog(force float64) string {
	return minimizationLog(NotConvergedMarker, force)
}

func minimizationLog(marker string, force float64) string {
	var b strings.Builder
	b.WriteString("                      :-) GROMACS - gmx mdrun, 2023.3 (-:\n\n")
	b.WriteString("Started mdrun on rank 0\n")
	b.WriteString("           Step           Time\n")
	b.WriteString("              0        0.00000\n\n")
	b.WriteString(marker)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Potential Energy  = -1.10348945e+06\n")
	fmt.Fprintf(&b, "Maximum force     =  %.8e on atom 4521\n", force)
	fmt.Fprintf(&b, "Norm of force     =  2.14567890e+01\n")
	return b.String()
}

// ListFiles returns the sorted names of the regular files in dir.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("listing %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}
