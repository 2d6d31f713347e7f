// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package band

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// randBand returns a random diagonally dominant banded matrix.
func randBand(n, kl, ku int, rnd *rand.Rand) *Matrix {
	m := New(n, kl, ku)
	for i := 0; i < n; i++ {
		for j := i - kl; j <= i+ku; j++ {
			if j < 0 || n <= j {
				continue
			}
			m.Set(i, j, 2*rnd.Float64()-1)
		}
		m.Set(i, i, float64(kl+ku+2)+rnd.Float64())
	}
	return m
}

// mulVec computes y = A x from the unfactored band.
func mulVec(m *Matrix, x []float64) []float64 {
	y := make([]float64, m.N)
	for i := 0; i < m.N; i++ {
		for j := i - m.KL; j <= i+m.KU; j++ {
			if j < 0 || m.N <= j {
				continue
			}
			y[i] += m.At(i, j) * x[j]
		}
	}
	return y
}

// mulTransVec computes y = Aᵀ x from the unfactored band.
func mulTransVec(m *Matrix, x []float64) []float64 {
	y := make([]float64, m.N)
	for i := 0; i < m.N; i++ {
		for j := i - m.KL; j <= i+m.KU; j++ {
			if j < 0 || m.N <= j {
				continue
			}
			y[j] += m.At(i, j) * x[i]
		}
	}
	return y
}

var factorTests = []struct {
	n, kl, ku int
}{
	{n: 1, kl: 0, ku: 0},
	{n: 5, kl: 0, ku: 0},
	{n: 5, kl: 1, ku: 1},
	{n: 10, kl: 2, ku: 1},
	{n: 10, kl: 1, ku: 3},
	{n: 50, kl: 4, ku: 4},
	{n: 117, kl: 7, ku: 2},
	{n: 200, kl: 5, ku: 5},
}

func TestFactorLUSolve(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, tc := range factorTests {
		for _, safe := range []bool{false, true} {
			a := randBand(tc.n, tc.kl, tc.ku, rnd)
			want := make([]float64, tc.n)
			for i := range want {
				want[i] = 1 + float64(i)/float64(tc.n)
			}
			b := mulVec(a, want)

			f := a.Clone()
			if err := f.FactorLU(safe); err != nil {
				t.Fatalf("n=%d kl=%d ku=%d safe=%t: unexpected error %v", tc.n, tc.kl, tc.ku, safe, err)
			}
			f.SolveLU(b)
			if !floats.EqualApprox(b, want, 1e-10) {
				t.Errorf("n=%d kl=%d ku=%d safe=%t: bad LU solution", tc.n, tc.kl, tc.ku, safe)
			}
		}
	}
}

func TestFactorULSolve(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	for _, tc := range factorTests {
		a := randBand(tc.n, tc.kl, tc.ku, rnd)
		want := make([]float64, tc.n)
		for i := range want {
			want[i] = 1 - float64(i)/float64(2*tc.n)
		}
		b := mulVec(a, want)

		f := a.Clone()
		if err := f.FactorUL(true); err != nil {
			t.Fatalf("n=%d kl=%d ku=%d: unexpected error %v", tc.n, tc.kl, tc.ku, err)
		}
		f.SolveUL(b)
		if !floats.EqualApprox(b, want, 1e-10) {
			t.Errorf("n=%d kl=%d ku=%d: bad UL solution", tc.n, tc.kl, tc.ku)
		}
	}
}

func TestSolveLUTrans(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for _, tc := range factorTests {
		a := randBand(tc.n, tc.kl, tc.ku, rnd)
		want := make([]float64, tc.n)
		for i := range want {
			want[i] = float64(i%7) - 3
		}
		b := mulTransVec(a, want)

		f := a.Clone()
		if err := f.FactorLU(true); err != nil {
			t.Fatalf("n=%d kl=%d ku=%d: unexpected error %v", tc.n, tc.kl, tc.ku, err)
		}
		f.SolveLUTrans(b)
		if !floats.EqualApprox(b, want, 1e-10) {
			t.Errorf("n=%d kl=%d ku=%d: bad transposed solution", tc.n, tc.kl, tc.ku)
		}
	}
}

func TestFactorLUZeroPivot(t *testing.T) {
	// Upper triangular, so the pivots are the diagonal entries.
	m := New(3, 0, 1)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 1, 0)
	m.Set(1, 2, 1)
	m.Set(2, 2, 3)

	err := m.Clone().FactorLU(false)
	if err != nil {
		t.Errorf("fast mode: unexpected error %v", err)
	}

	err = m.FactorLU(true)
	be, ok := err.(*Error)
	if !ok {
		t.Fatalf("got error %v, want *Error", err)
	}
	if be.Kind != ZeroPivot || be.Row != 1 {
		t.Errorf("got kind %d row %d, want ZeroPivot at row 1", be.Kind, be.Row)
	}
}

func TestFactorULZeroPivot(t *testing.T) {
	m := New(3, 1, 0)
	m.Set(0, 0, 2)
	m.Set(1, 0, 1)
	m.Set(1, 1, 0)
	m.Set(2, 1, 1)
	m.Set(2, 2, 1)

	err := m.FactorUL(true)
	be, ok := err.(*Error)
	if !ok {
		t.Fatalf("got error %v, want *Error", err)
	}
	if be.Kind != ZeroPivot || be.Row != 1 {
		t.Errorf("got kind %d row %d, want ZeroPivot at row 1", be.Kind, be.Row)
	}
}

func TestFactorSingular(t *testing.T) {
	m := New(4, 1, 1)
	m.Set(0, 1, 1)
	m.Set(1, 0, 1)
	m.Set(2, 3, 1)
	m.Set(3, 2, 1)

	err := m.Clone().FactorLU(true)
	be, ok := err.(*Error)
	if !ok || be.Kind != Singular {
		t.Errorf("FactorLU: got %v, want Singular", err)
	}
	err = m.FactorUL(true)
	be, ok = err.(*Error)
	if !ok || be.Kind != Singular {
		t.Errorf("FactorUL: got %v, want Singular", err)
	}
}

func TestAtSet(t *testing.T) {
	m := New(4, 1, 2)
	m.Set(1, 3, 5)
	if got := m.At(1, 3); got != 5 {
		t.Errorf("got %v, want 5", got)
	}
	if got := m.At(3, 0); got != 0 {
		t.Errorf("outside band: got %v, want 0", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("Set outside the band did not panic")
		}
	}()
	m.Set(3, 0, 1)
}
