package screen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
)

var forcePattern = regexp.MustCompile(`Maximum force\s*=\s*([\d.Ee+\-]+)`)

// ForceRecord is the maximum residual force reported by one attempt's log.
type ForceRecord struct {
	Base  string // attempt base name, e.g. "EM_2"
	Force float64
}

// ParseMaxForce returns the value of the first "Maximum force = <number>"
// occurrence in content.
func ParseMaxForce(content []byte) (float64, bool) {
	m := forcePattern.FindSubmatch(content)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractForces scans every attempt log in dir, in lexical (directory
// listing) order, and returns one ForceRecord per log carrying a parsable
// maximum force. Logs without one are silently excluded. Logs that cannot be
// read are excluded as well and reported through the returned error, which
// wraps ErrUnreadableLog; the records found so far remain valid.
func ExtractForces(dir string, l Layout) ([]ForceRecord, error) {
	pattern := escapeGlob(l.Prefix) + "*" + escapeGlob(l.LogExt)
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("listing attempt logs in %s: %w", dir, err)
	}
	sort.Strings(matches)

	var (
		records []ForceRecord
		errs    []error
	)
	for _, name := range matches {
		if name == l.ParameterFile {
			continue
		}
		base := name[:len(name)-len(l.LogExt)]
		if _, ok := ParseAttemptBase(l.Prefix, base); !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrUnreadableLog, err))
			continue
		}
		if force, ok := ParseMaxForce(content); ok {
			records = append(records, ForceRecord{Base: base, Force: force})
		}
	}
	return records, errors.Join(errs...)
}
