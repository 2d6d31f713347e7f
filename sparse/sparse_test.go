// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"testing"

	"gonum.org/v1/gonum/floats"
)

// testMatrix is
//
//	1 0 2 0
//	0 3 0 0
//	4 0 5 6
//	0 7 0 8
func testMatrix() *Matrix {
	return NewCSR(4, 4,
		[]int{0, 2, 3, 6, 8},
		[]int{0, 2, 1, 0, 2, 3, 1, 3},
		[]float64{1, 2, 3, 4, 5, 6, 7, 8})
}

func TestAt(t *testing.T) {
	m := testMatrix()
	want := [][]float64{
		{1, 0, 2, 0},
		{0, 3, 0, 0},
		{4, 0, 5, 6},
		{0, 7, 0, 8},
	}
	for i := range want {
		for j := range want[i] {
			if got := m.At(i, j); got != want[i][j] {
				t.Errorf("At(%d,%d) = %v, want %v", i, j, got, want[i][j])
			}
		}
	}
	if got := m.NNZ(); got != 8 {
		t.Errorf("NNZ = %d, want 8", got)
	}
}

func TestMulVec(t *testing.T) {
	m := testMatrix()
	x := []float64{1, 2, 3, 4}
	dst := make([]float64, 4)

	m.MulVec(dst, x)
	if want := []float64{7, 6, 43, 46}; !floats.Equal(dst, want) {
		t.Errorf("MulVec = %v, want %v", dst, want)
	}

	m.MulTransVec(dst, x)
	if want := []float64{13, 34, 17, 50}; !floats.Equal(dst, want) {
		t.Errorf("MulTransVec = %v, want %v", dst, want)
	}
}

func TestBandwidth(t *testing.T) {
	m := testMatrix()
	kl, ku := m.Bandwidth()
	if kl != 2 || ku != 2 {
		t.Errorf("Bandwidth = (%d,%d), want (2,2)", kl, ku)
	}
	if got := m.Mass(); got != 36 {
		t.Errorf("Mass = %v, want 36", got)
	}
}

func TestTripletToCSR(t *testing.T) {
	tr := NewTriplet(3, 3)
	tr.Append(2, 0, 1)
	tr.Append(0, 1, 2)
	tr.Append(1, 1, 3)
	tr.Append(0, 1, 4) // duplicate, summed
	tr.Append(2, 2, 5)

	m := tr.ToCSR()
	if got := m.At(0, 1); got != 6 {
		t.Errorf("duplicate entry = %v, want 6", got)
	}
	if got := m.At(1, 1); got != 3 {
		t.Errorf("At(1,1) = %v, want 3", got)
	}
	if got := m.NNZ(); got != 4 {
		t.Errorf("NNZ = %d, want 4", got)
	}

	// The builders and the CSR form must agree on products.
	x := []float64{1, -1, 2}
	want := make([]float64, 3)
	got := make([]float64, 3)
	tr.MulVec(want, x)
	m.MulVec(got, x)
	if !floats.Equal(got, want) {
		t.Errorf("MulVec mismatch: csr %v, triplet %v", got, want)
	}
}

func TestDOKToCSR(t *testing.T) {
	d := NewDOK(3, 3)
	d.SetAt(0, 0, 1)
	d.SetAt(2, 1, 4)
	d.SetAt(2, 1, 2) // replaces
	d.SetAt(1, 2, 3)

	m := d.ToCSR()
	if got := m.At(2, 1); got != 2 {
		t.Errorf("At(2,1) = %v, want 2", got)
	}
	if got := m.NNZ(); got != 3 {
		t.Errorf("NNZ = %d, want 3", got)
	}
}

func TestPermuteScale(t *testing.T) {
	m := testMatrix()
	rowNewToOld := []int{2, 0, 3, 1}
	colOldToNew := []int{1, 3, 0, 2}
	rowScale := []float64{1, 2, 3, 4}
	colScale := []float64{1, 0.5, 2, 0.25}

	b := PermuteScale(m, rowNewToOld, colOldToNew, rowScale, colScale)

	colNewToOld := make([]int, 4)
	for j, p := range colOldToNew {
		colNewToOld[p] = j
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p, q := rowNewToOld[i], colNewToOld[j]
			want := rowScale[p] * m.At(p, q) * colScale[q]
			if got := b.At(i, j); got != want {
				t.Errorf("At(%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestPermuteScaleIdentity(t *testing.T) {
	m := testMatrix()
	b := PermuteScale(m, nil, nil, nil, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if b.At(i, j) != m.At(i, j) {
				t.Errorf("At(%d,%d) changed under identity", i, j)
			}
		}
	}
}
