// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

// DOK is a dictionary-of-keys sparse matrix builder.
type DOK struct {
	Rows, Cols int

	data map[index]float64
}

type index struct {
	row, col int
}

// NewDOK returns an empty r×c dictionary-of-keys builder.
func NewDOK(r, c int) *DOK {
	return &DOK{
		Rows: r,
		Cols: c,
		data: make(map[index]float64),
	}
}

// At returns the entry at (i, j), zero if it has not been set.
func (m *DOK) At(i, j int) float64 {
	if i < 0 || m.Rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("sparse: column index out of range")
	}
	return m.data[index{i, j}]
}

// SetAt stores v at position (i, j), replacing any previous value.
func (m *DOK) SetAt(i, j int, v float64) {
	if i < 0 || m.Rows <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("sparse: column index out of range")
	}
	m.data[index{i, j}] = v
}

// MulVec computes A*x and accumulates the result into dst.
func (m *DOK) MulVec(dst, x []float64) {
	if m.Cols != len(x) {
		panic("sparse: dimension mismatch")
	}
	if m.Rows != len(dst) {
		panic("sparse: dimension mismatch")
	}
	for ij, aij := range m.data {
		dst[ij.row] += aij * x[ij.col]
	}
}

// MulTransVec computes Aᵀ*x and accumulates the result into dst.
func (m *DOK) MulTransVec(dst, x []float64) {
	if m.Cols != len(dst) {
		panic("sparse: dimension mismatch")
	}
	if m.Rows != len(x) {
		panic("sparse: dimension mismatch")
	}
	for ij, aij := range m.data {
		dst[ij.col] += aij * x[ij.row]
	}
}

// ToCSR converts the stored entries into a Matrix.
func (m *DOK) ToCSR() *Matrix {
	t := NewTriplet(m.Rows, m.Cols)
	for ij, aij := range m.data {
		t.Append(ij.row, ij.col, aij)
	}
	return t.ToCSR()
}
