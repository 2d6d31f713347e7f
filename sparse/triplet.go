// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import "sort"

type triplet struct {
	i, j int
	v    float64
}

// Triplet accumulates matrix entries in coordinate format. Entries may
// be appended in any order; duplicates are summed when converting to
// CSR.
type Triplet struct {
	r, c int
	data []triplet
}

// NewTriplet returns an empty r×c coordinate accumulator.
func NewTriplet(r, c int) *Triplet {
	return &Triplet{
		r: r,
		c: c,
	}
}

// Dims returns the dimensions of the matrix.
func (m *Triplet) Dims() (r, c int) {
	return m.r, m.c
}

// Append adds v at position (i, j).
func (m *Triplet) Append(i, j int, v float64) {
	if i < 0 || m.r <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.c <= j {
		panic("sparse: column index out of range")
	}
	m.data = append(m.data, triplet{i, j, v})
}

// MulVec computes A*x and stores the result into dst.
func (m *Triplet) MulVec(dst, x []float64) {
	if m.c != len(x) {
		panic("sparse: dimension mismatch")
	}
	if m.r != len(dst) {
		panic("sparse: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, aij := range m.data {
		dst[aij.i] += aij.v * x[aij.j]
	}
}

// MulTransVec computes Aᵀ*x and stores the result into dst.
func (m *Triplet) MulTransVec(dst, x []float64) {
	if m.c != len(dst) {
		panic("sparse: dimension mismatch")
	}
	if m.r != len(x) {
		panic("sparse: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, aij := range m.data {
		dst[aij.j] += aij.v * x[aij.i]
	}
}

// ToCSR converts the accumulated entries into a Matrix, summing
// duplicate positions. The accumulator is left unchanged.
func (m *Triplet) ToCSR() *Matrix {
	data := make([]triplet, len(m.data))
	copy(data, m.data)
	sort.Slice(data, func(a, b int) bool {
		if data[a].i != data[b].i {
			return data[a].i < data[b].i
		}
		return data[a].j < data[b].j
	})

	rowPtr := make([]int, m.r+1)
	colIdx := make([]int, 0, len(data))
	val := make([]float64, 0, len(data))
	for k := 0; k < len(data); {
		t := data[k]
		v := t.v
		k++
		for k < len(data) && data[k].i == t.i && data[k].j == t.j {
			v += data[k].v
			k++
		}
		colIdx = append(colIdx, t.j)
		val = append(val, v)
		rowPtr[t.i+1]++
	}
	for i := 0; i < m.r; i++ {
		rowPtr[i+1] += rowPtr[i]
	}
	return &Matrix{r: m.r, c: m.c, rowPtr: rowPtr, colIdx: colIdx, val: val}
}
