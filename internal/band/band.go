// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package band implements dense banded storage and in-place LU and UL
// factorizations without pivoting, together with the corresponding
// banded triangular solves.
//
// A matrix with lower half-bandwidth kl and upper half-bandwidth ku is
// stored row by row, kl+ku+1 values per row, so that entry (i, j) lives
// at Data[i*(kl+ku+1) + j-i+kl]. This is the row-major analogue of the
// LAPACK general band layout.
package band

import (
	"fmt"
	"math"
)

// machEps is the double precision machine epsilon.
const machEps = 1.0 / (1 << 53)

// ErrorKind identifies the failure detected by a safe factorization.
type ErrorKind int

const (
	// ZeroPivot means a diagonal pivot was exactly or nearly zero.
	ZeroPivot ErrorKind = iota
	// Singular means the block has no numerically meaningful diagonal.
	Singular
	// OutOfBand means an elimination update addressed a position
	// outside the allocated band.
	OutOfBand
)

// Error describes a failure of a safe factorization.
type Error struct {
	Kind ErrorKind
	Row  int
}

func (e *Error) Error() string {
	switch e.Kind {
	case ZeroPivot:
		return fmt.Sprintf("band: zero pivot at row %d", e.Row)
	case Singular:
		return "band: matrix is singular"
	case OutOfBand:
		return fmt.Sprintf("band: update outside the band at row %d", e.Row)
	}
	return "band: unknown error"
}

// Matrix is an n×n banded matrix.
type Matrix struct {
	N      int
	KL, KU int

	stride int
	Data   []float64
}

// New returns a zero n×n banded matrix with the given half-bandwidths.
func New(n, kl, ku int) *Matrix {
	if n <= 0 {
		panic("band: dimension not positive")
	}
	if kl < 0 || ku < 0 || kl >= n || ku >= n {
		panic("band: invalid bandwidth")
	}
	s := kl + ku + 1
	return &Matrix{
		N:      n,
		KL:     kl,
		KU:     ku,
		stride: s,
		Data:   make([]float64, n*s),
	}
}

func (m *Matrix) index(i, j int) (int, bool) {
	d := j - i
	if i < 0 || m.N <= i || j < 0 || m.N <= j || d < -m.KL || m.KU < d {
		return 0, false
	}
	return i*m.stride + d + m.KL, true
}

// At returns the entry at (i, j). Positions outside the band are zero.
func (m *Matrix) At(i, j int) float64 {
	k, ok := m.index(i, j)
	if !ok {
		return 0
	}
	return m.Data[k]
}

// Set stores v at the in-band position (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	k, ok := m.index(i, j)
	if !ok {
		panic("band: index outside the band")
	}
	m.Data[k] = v
}

// Clone returns a copy of the matrix.
func (m *Matrix) Clone() *Matrix {
	c := New(m.N, m.KL, m.KU)
	copy(c.Data, m.Data)
	return c
}

func (m *Matrix) diagMax() float64 {
	var dmax float64
	for k := 0; k < m.N; k++ {
		v := math.Abs(m.Data[k*m.stride+m.KL])
		if v > dmax {
			dmax = v
		}
	}
	return dmax
}

// FactorLU overwrites the matrix with its LU factorization computed
// without pivoting. The unit lower triangular factor's multipliers are
// stored below the diagonal and U on and above it.
//
// With safe true every pivot is checked against the largest initial
// diagonal magnitude and elimination updates are bounds checked; a
// violation is reported as *Error and the matrix contents are
// unspecified. With safe false no checks are made and a (near-)singular
// block silently produces non-finite factors.
func (m *Matrix) FactorLU(safe bool) error {
	n, kl, ku, s := m.N, m.KL, m.KU, m.stride
	var dmax float64
	if safe {
		dmax = m.diagMax()
		if dmax == 0 {
			return &Error{Kind: Singular, Row: -1}
		}
	}
	for k := 0; k < n; k++ {
		piv := m.Data[k*s+kl]
		if safe && math.Abs(piv) <= machEps*dmax {
			return &Error{Kind: ZeroPivot, Row: k}
		}
		for i := k + 1; i <= k+kl && i < n; i++ {
			l := m.Data[i*s+k-i+kl] / piv
			m.Data[i*s+k-i+kl] = l
			if l == 0 {
				continue
			}
			for j := k + 1; j <= k+ku && j < n; j++ {
				if safe {
					idx, ok := m.index(i, j)
					if !ok {
						return &Error{Kind: OutOfBand, Row: i}
					}
					m.Data[idx] -= l * m.Data[k*s+j-k+kl]
					continue
				}
				m.Data[i*s+j-i+kl] -= l * m.Data[k*s+j-k+kl]
			}
		}
	}
	return nil
}

// FactorUL overwrites the matrix with its UL factorization, eliminating
// from the last row upwards. The unit upper triangular factor's
// multipliers are stored above the diagonal and L on and below it. The
// safe mode checks mirror FactorLU.
func (m *Matrix) FactorUL(safe bool) error {
	n, kl, ku, s := m.N, m.KL, m.KU, m.stride
	var dmax float64
	if safe {
		dmax = m.diagMax()
		if dmax == 0 {
			return &Error{Kind: Singular, Row: -1}
		}
	}
	for k := n - 1; k >= 0; k-- {
		piv := m.Data[k*s+kl]
		if safe && math.Abs(piv) <= machEps*dmax {
			return &Error{Kind: ZeroPivot, Row: k}
		}
		for i := k - 1; i >= k-ku && i >= 0; i-- {
			u := m.Data[i*s+k-i+kl] / piv
			m.Data[i*s+k-i+kl] = u
			if u == 0 {
				continue
			}
			for j := k - 1; j >= k-kl && j >= 0; j-- {
				if safe {
					idx, ok := m.index(i, j)
					if !ok {
						return &Error{Kind: OutOfBand, Row: i}
					}
					m.Data[idx] -= u * m.Data[k*s+j-k+kl]
					continue
				}
				m.Data[i*s+j-i+kl] -= u * m.Data[k*s+j-k+kl]
			}
		}
	}
	return nil
}

// SolveLU solves A x = b in place using the factors computed by
// FactorLU.
func (m *Matrix) SolveLU(b []float64) {
	n, kl, ku, s := m.N, m.KL, m.KU, m.stride
	if len(b) != n {
		panic("band: dimension mismatch")
	}
	// Forward substitution with the unit lower factor.
	for i := 1; i < n; i++ {
		var sum float64
		for j := i - kl; j < i; j++ {
			if j < 0 {
				continue
			}
			sum += m.Data[i*s+j-i+kl] * b[j]
		}
		b[i] -= sum
	}
	// Back substitution with the upper factor.
	for i := n - 1; i >= 0; i-- {
		var sum float64
		for j := i + 1; j <= i+ku && j < n; j++ {
			sum += m.Data[i*s+j-i+kl] * b[j]
		}
		b[i] = (b[i] - sum) / m.Data[i*s+kl]
	}
}

// SolveLUTrans solves Aᵀ x = b in place using the factors computed by
// FactorLU, first with the transposed upper factor and then with the
// transposed unit lower one.
func (m *Matrix) SolveLUTrans(b []float64) {
	n, kl, ku, s := m.N, m.KL, m.KU, m.stride
	if len(b) != n {
		panic("band: dimension mismatch")
	}
	// Uᵀ is lower triangular.
	for i := 0; i < n; i++ {
		var sum float64
		for j := i - ku; j < i; j++ {
			if j < 0 {
				continue
			}
			sum += m.Data[j*s+i-j+kl] * b[j]
		}
		b[i] = (b[i] - sum) / m.Data[i*s+kl]
	}
	// Lᵀ is unit upper triangular.
	for i := n - 1; i >= 0; i-- {
		var sum float64
		for j := i + 1; j <= i+kl && j < n; j++ {
			sum += m.Data[j*s+i-j+kl] * b[j]
		}
		b[i] -= sum
	}
}

// SolveUL solves A x = b in place using the factors computed by
// FactorUL.
func (m *Matrix) SolveUL(b []float64) {
	n, kl, ku, s := m.N, m.KL, m.KU, m.stride
	if len(b) != n {
		panic("band: dimension mismatch")
	}
	// Substitution with the unit upper factor, from the last row up.
	for i := n - 2; i >= 0; i-- {
		var sum float64
		for j := i + 1; j <= i+ku && j < n; j++ {
			sum += m.Data[i*s+j-i+kl] * b[j]
		}
		b[i] -= sum
	}
	// Substitution with the lower factor, from the first row down.
	for i := 0; i < n; i++ {
		var sum float64
		for j := i - kl; j < i; j++ {
			if j < 0 {
				continue
			}
			sum += m.Data[i*s+j-i+kl] * b[j]
		}
		b[i] = (b[i] - sum) / m.Data[i*s+kl]
	}
}
