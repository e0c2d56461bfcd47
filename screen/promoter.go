package screen

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Rename is one file moved onto its canonical name.
type Rename struct {
	From string
	To   string
}

// Promotion records what Promote did to a variant directory.
type Promotion struct {
	Winner    string
	Canonical string
	Removed   []string
	Renamed   []Rename
	Digests   map[string]string // canonical file name -> BLAKE3 hex digest
}

// Noop reports whether the promotion neither removed nor renamed anything.
func (p *Promotion) Noop() bool {
	return len(p.Removed) == 0 && len(p.Renamed) == 0
}

// Promote deletes every attempt artifact in dir that does not belong to
// winner, then renames the winner's files to the canonical base name
// (l.Prefix), replacing canonical files of the same extension. The
// parameter file is never touched.
//
// Promotion is destructive and not re-runnable: afterwards only canonical
// files remain, so a second call removes and renames nothing.
func Promote(dir, winner string, l Layout) (*Promotion, error) {
	p := &Promotion{Winner: winner, Canonical: l.Prefix, Digests: map[string]string{}}
	pattern := artifactPattern(l.Prefix)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == l.ParameterFile || !pattern.MatchString(name) {
			continue
		}
		if stripExt(name) == winner {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return p, fmt.Errorf("removing %s: %w", name, err)
		}
		p.Removed = append(p.Removed, name)
	}

	entries, err = os.ReadDir(dir)
	if err != nil {
		return p, fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == l.ParameterFile || stripExt(name) != winner {
			continue
		}
		target := name
		if winner != l.Prefix {
			target = l.Prefix + filepath.Ext(name)
			if err := os.Remove(filepath.Join(dir, target)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return p, fmt.Errorf("removing stale %s: %w", target, err)
			}
			if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, target)); err != nil {
				return p, fmt.Errorf("renaming %s to %s: %w", name, target, err)
			}
			p.Renamed = append(p.Renamed, Rename{From: name, To: target})
		}
		sum, err := fileDigest(filepath.Join(dir, target))
		if err != nil {
			return p, err
		}
		p.Digests[target] = sum
	}
	return p, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
