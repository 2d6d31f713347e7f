// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"github.com/Milad-Rakhsha/SaPLibrary/internal/band"
	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
)

// partitionSet describes the block row decomposition of an n×n matrix
// into p contiguous partitions together with the half-bandwidths of the
// diagonal blocks and the widths of the coupling interfaces.
type partitionSet struct {
	n     int
	p     int
	start []int // partition i spans rows [start[i], start[i+1])
	kl    []int // lower half-bandwidth of diagonal block i
	ku    []int // upper half-bandwidth of diagonal block i
	width []int // interface j couples partitions j and j+1
}

// newPartitionSet splits n rows into p partitions of near-equal size,
// the remainder spread over the leading partitions.
func newPartitionSet(n, p int) *partitionSet {
	if p > n {
		p = n
	}
	start := make([]int, p+1)
	for i := 0; i <= p; i++ {
		start[i] = i * n / p
	}
	return &partitionSet{
		n:     n,
		p:     p,
		start: start,
		kl:    make([]int, p),
		ku:    make([]int, p),
		width: make([]int, p-1),
	}
}

func (ps *partitionSet) size(i int) int { return ps.start[i+1] - ps.start[i] }

// owner returns the partition containing global row r.
func (ps *partitionSet) owner(r int) int {
	lo, hi := 0, ps.p
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if ps.start[mid] <= r {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// setBandwidths fills the per-partition half-bandwidths and the
// interface widths. With variable = false every partition gets the
// global pair (kl, ku); otherwise each diagonal block is measured
// individually, still capped by the global pair which already reflects
// drop-off and the bandwidth limit.
func (ps *partitionSet) setBandwidths(m *sparse.Matrix, kl, ku int, variable bool) {
	for i := 0; i < ps.p; i++ {
		ps.kl[i] = min(kl, ps.size(i)-1)
		ps.ku[i] = min(ku, ps.size(i)-1)
	}
	if variable {
		for i := range ps.kl {
			ps.kl[i] = 0
			ps.ku[i] = 0
		}
		for r := 0; r < ps.n; r++ {
			i := ps.owner(r)
			cols, _ := m.Row(r)
			for _, c := range cols {
				if c < ps.start[i] || ps.start[i+1] <= c {
					continue
				}
				switch d := r - c; {
				case d > 0 && d <= kl && d > ps.kl[i]:
					ps.kl[i] = d
				case d < 0 && -d <= ku && -d > ps.ku[i]:
					ps.ku[i] = -d
				}
			}
		}
	}
	for j := 0; j+1 < ps.p; j++ {
		w := max(ps.ku[j], ps.kl[j+1])
		w = min(w, ps.size(j))
		w = min(w, ps.size(j+1))
		ps.width[j] = w
	}
}

// constantBandwidth reports whether all partitions share one (kl, ku)
// pair, the shape block cyclic reduction requires.
func (ps *partitionSet) constantBandwidth() bool {
	for i := 1; i < ps.p; i++ {
		if ps.kl[i] != ps.kl[0] || ps.ku[i] != ps.ku[0] {
			return false
		}
	}
	return true
}

// dropOffBandwidth selects the smallest half-bandwidth whose exterior
// holds at most frac of the matrix mass. maxBand, when positive, caps
// the result regardless of the mass left outside. The returned fraction
// is the mass actually dropped relative to the total.
func dropOffBandwidth(m *sparse.Matrix, frac float64, maxBand int) (b int, droppedFrac float64) {
	n, _ := m.Dims()
	hist := make([]float64, n)
	total := 0.0
	for i := 0; i < n; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			d := i - j
			if d < 0 {
				d = -d
			}
			a := vals[k]
			if a < 0 {
				a = -a
			}
			hist[d] += a
			total += a
		}
	}
	if total == 0 {
		return 0, 0
	}
	kl, ku := m.Bandwidth()
	b = max(kl, ku)
	if frac > 0 {
		budget := frac * total
		dropped := 0.0
		for b > 0 && dropped+hist[b] <= budget {
			dropped += hist[b]
			b--
		}
		droppedFrac = dropped / total
	}
	if maxBand > 0 && b > maxBand {
		for d := maxBand + 1; d <= b; d++ {
			droppedFrac += hist[d] / total
		}
		b = maxBand
	}
	return b, droppedFrac
}

// extractBands builds the banded storage of every diagonal block.
// Entries of the block beyond its half-bandwidths are dropped. A row
// with no entry inside its block's band leaves the factorization
// without a pivot, which is reported as a singular matrix.
func extractBands(m *sparse.Matrix, ps *partitionSet) ([]*band.Matrix, error) {
	blocks := make([]*band.Matrix, ps.p)
	for i := range blocks {
		blocks[i] = band.New(ps.size(i), ps.kl[i], ps.ku[i])
	}
	for r := 0; r < ps.n; r++ {
		i := ps.owner(r)
		lo := ps.start[i]
		bm := blocks[i]
		any := false
		cols, vals := m.Row(r)
		for k, c := range cols {
			if c < lo || ps.start[i+1] <= c {
				continue
			}
			d := r - c
			if d > bm.KL || -d > bm.KU {
				continue
			}
			bm.Set(r-lo, c-lo, vals[k])
			any = true
		}
		if !any {
			return nil, factorErr(MatrixSingular, i, "row with no entries inside the band")
		}
	}
	return blocks, nil
}
