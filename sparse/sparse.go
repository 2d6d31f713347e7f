// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse provides a compressed sparse row matrix and simple
// builders for assembling one from scattered entries.
package sparse

import (
	"math"
	"sort"
)

// Matrix is a sparse matrix in compressed sparse row format. Once
// constructed it is never modified; operations that change the matrix
// return a new one.
type Matrix struct {
	r, c   int
	rowPtr []int
	colIdx []int
	val    []float64
}

// NewCSR returns a matrix backed by the given CSR data. The slices are
// used directly and must not be modified afterwards. Column indices
// within each row must be sorted and unique.
func NewCSR(r, c int, rowPtr, colIdx []int, val []float64) *Matrix {
	if r < 0 || c < 0 {
		panic("sparse: negative dimension")
	}
	if len(rowPtr) != r+1 {
		panic("sparse: bad row pointer length")
	}
	if len(colIdx) != len(val) || len(colIdx) != rowPtr[r] {
		panic("sparse: mismatched data length")
	}
	for i := 0; i < r; i++ {
		if rowPtr[i] > rowPtr[i+1] {
			panic("sparse: row pointers not monotone")
		}
		for k := rowPtr[i]; k < rowPtr[i+1]; k++ {
			if colIdx[k] < 0 || c <= colIdx[k] {
				panic("sparse: column index out of range")
			}
			if k > rowPtr[i] && colIdx[k-1] >= colIdx[k] {
				panic("sparse: column indices not sorted")
			}
		}
	}
	return &Matrix{r: r, c: c, rowPtr: rowPtr, colIdx: colIdx, val: val}
}

// Dims returns the dimensions of the matrix.
func (m *Matrix) Dims() (r, c int) {
	return m.r, m.c
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.val)
}

// Row returns views of the column indices and values of row i. The
// returned slices must not be modified.
func (m *Matrix) Row(i int) (cols []int, vals []float64) {
	if i < 0 || m.r <= i {
		panic("sparse: row index out of range")
	}
	return m.colIdx[m.rowPtr[i]:m.rowPtr[i+1]], m.val[m.rowPtr[i]:m.rowPtr[i+1]]
}

// At returns the entry at (i, j), zero if it is not stored.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || m.r <= i {
		panic("sparse: row index out of range")
	}
	if j < 0 || m.c <= j {
		panic("sparse: column index out of range")
	}
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// MulVec computes A*x and stores the result into dst.
func (m *Matrix) MulVec(dst, x []float64) {
	if m.c != len(x) {
		panic("sparse: dimension mismatch")
	}
	if m.r != len(dst) {
		panic("sparse: dimension mismatch")
	}
	for i := 0; i < m.r; i++ {
		var sum float64
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.val[k] * x[m.colIdx[k]]
		}
		dst[i] = sum
	}
}

// MulTransVec computes Aᵀ*x and stores the result into dst.
func (m *Matrix) MulTransVec(dst, x []float64) {
	if m.c != len(dst) {
		panic("sparse: dimension mismatch")
	}
	if m.r != len(x) {
		panic("sparse: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < m.r; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			dst[m.colIdx[k]] += m.val[k] * x[i]
		}
	}
}

// Bandwidth returns the lower and upper half-bandwidths of the matrix,
// the largest distances of a stored entry below and above the diagonal.
func (m *Matrix) Bandwidth() (kl, ku int) {
	for i := 0; i < m.r; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			d := m.colIdx[k] - i
			if d < -kl {
				kl = -d
			}
			if d > ku {
				ku = d
			}
		}
	}
	return kl, ku
}

// Mass returns the element-wise 1-norm of the matrix, the sum of
// absolute values of all stored entries.
func (m *Matrix) Mass() float64 {
	var s float64
	for _, v := range m.val {
		s += math.Abs(v)
	}
	return s
}

// PermuteScale returns the matrix with entries
//
//	B[i, colOldToNew[j]] = rowScale[p]*A[p, j]*colScale[j],  p = rowNewToOld[i].
//
// rowNewToOld maps a row of the result to the row of m it comes from,
// and colOldToNew maps a column of m to its position in the result. Nil
// permutations mean identity and nil scale vectors mean all ones.
func PermuteScale(m *Matrix, rowNewToOld, colOldToNew []int, rowScale, colScale []float64) *Matrix {
	if rowNewToOld != nil && len(rowNewToOld) != m.r {
		panic("sparse: bad row permutation length")
	}
	if colOldToNew != nil && len(colOldToNew) != m.c {
		panic("sparse: bad column permutation length")
	}
	rowPtr := make([]int, m.r+1)
	colIdx := make([]int, len(m.colIdx))
	val := make([]float64, len(m.val))
	nnz := 0
	for i := 0; i < m.r; i++ {
		p := i
		if rowNewToOld != nil {
			p = rowNewToOld[i]
		}
		rs := 1.0
		if rowScale != nil {
			rs = rowScale[p]
		}
		begin := nnz
		for k := m.rowPtr[p]; k < m.rowPtr[p+1]; k++ {
			j := m.colIdx[k]
			v := rs * m.val[k]
			if colScale != nil {
				v *= colScale[j]
			}
			if colOldToNew != nil {
				j = colOldToNew[j]
			}
			colIdx[nnz] = j
			val[nnz] = v
			nnz++
		}
		sortRow(colIdx[begin:nnz], val[begin:nnz])
		rowPtr[i+1] = nnz
	}
	return &Matrix{r: m.r, c: m.c, rowPtr: rowPtr, colIdx: colIdx, val: val}
}

func sortRow(cols []int, vals []float64) {
	sort.Sort(&rowSort{cols, vals})
}

type rowSort struct {
	cols []int
	vals []float64
}

func (s *rowSort) Len() int           { return len(s.cols) }
func (s *rowSort) Less(i, j int) bool { return s.cols[i] < s.cols[j] }
func (s *rowSort) Swap(i, j int) {
	s.cols[i], s.cols[j] = s.cols[j], s.cols[i]
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
}
