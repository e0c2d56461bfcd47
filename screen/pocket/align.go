package pocket

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrAlignment reports that two structures could not be superposed.
var ErrAlignment = errors.New("alignment failed")

// minPairs is the smallest number of matched CA atoms a rigid fit accepts.
const minPairs = 3

// Transform is a rigid-body motion: p' = R·(p - From) + To.
type Transform struct {
	R    [3][3]float64
	From Vec3
	To   Vec3
}

// Identity leaves every coordinate unchanged.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Apply moves p.
func (t Transform) Apply(p Vec3) Vec3 {
	d := p.Sub(t.From)
	var out Vec3
	for i := 0; i < 3; i++ {
		out[i] = t.R[i][0]*d[0] + t.R[i][1]*d[1] + t.R[i][2]*d[2] + t.To[i]
	}
	return out
}

// ApplyTo returns a copy of s with every atom moved by t.
func (t Transform) ApplyTo(s *Structure) *Structure {
	c := s.Clone()
	for i := range c.Atoms {
		c.Atoms[i].Pos = t.Apply(c.Atoms[i].Pos)
	}
	return c
}

// Alignment is the result of Superpose.
type Alignment struct {
	Transform Transform
	RMSD      float64 // over the matched pairs, after the fit
	Pairs     int
}

// Superpose computes the least-squares rigid motion (Kabsch) that moves
// mobile onto target. CA atoms are paired by chain, residue number and
// insertion code; at least three pairs are required.
func Superpose(target, mobile *Structure) (*Alignment, error) {
	tgt, mob := matchCA(target, mobile)
	if len(tgt) < minPairs {
		return nil, fmt.Errorf("%w: %d matched CA atoms between %s and %s, need %d",
			ErrAlignment, len(tgt), target.Name, mobile.Name, minPairs)
	}

	tc, mc := centroid(tgt), centroid(mob)
	n := len(tgt)
	p := mat.NewDense(n, 3, nil)
	q := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		dm, dt := mob[i].Sub(mc), tgt[i].Sub(tc)
		p.SetRow(i, dm[:])
		q.SetRow(i, dt[:])
	}

	var h mat.Dense
	h.Mul(p.T(), q)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: SVD of covariance matrix did not converge", ErrAlignment)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Reflection correction: flip the axis of the smallest singular value.
	var vu mat.Dense
	vu.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vu) < 0 {
		d = -1
	}
	corr := mat.NewDiagDense(3, []float64{1, 1, d})

	var r, tmp mat.Dense
	tmp.Mul(&v, corr)
	r.Mul(&tmp, u.T())

	t := Transform{From: mc, To: tc}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.R[i][j] = r.At(i, j)
		}
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += t.Apply(mob[i]).Dist2(tgt[i])
	}
	return &Alignment{Transform: t, RMSD: math.Sqrt(sum / float64(n)), Pairs: n}, nil
}

// matchCA pairs the CA atoms of two structures by residue, in target order.
// Alternate locations other than the first are ignored.
func matchCA(target, mobile *Structure) (tgt, mob []Vec3) {
	byRes := make(map[ResidueKey]Vec3)
	for _, a := range mobile.Atoms {
		if a.Name != "CA" || a.Het {
			continue
		}
		if _, seen := byRes[a.Residue()]; !seen {
			byRes[a.Residue()] = a.Pos
		}
	}
	used := make(map[ResidueKey]bool)
	for _, a := range target.Atoms {
		if a.Name != "CA" || a.Het || used[a.Residue()] {
			continue
		}
		if pos, ok := byRes[a.Residue()]; ok {
			used[a.Residue()] = true
			tgt = append(tgt, a.Pos)
			mob = append(mob, pos)
		}
	}
	return tgt, mob
}

func centroid(ps []Vec3) Vec3 {
	var c Vec3
	if len(ps) == 0 {
		return c
	}
	for _, p := range ps {
		c[0] += p[0]
		c[1] += p[1]
		c[2] += p[2]
	}
	n := float64(len(ps))
	return Vec3{c[0] / n, c[1] / n, c[2] / n}
}
