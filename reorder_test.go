// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
)

// csrFromDense builds a CSR matrix from a dense layout, skipping exact
// zeros.
func csrFromDense(a [][]float64) *sparse.Matrix {
	t := sparse.NewTriplet(len(a), len(a[0]))
	for i := range a {
		for j, v := range a[i] {
			if v != 0 {
				t.Append(i, j, v)
			}
		}
	}
	return t.ToCSR()
}

// randBandedCSR returns a random diagonally dominant banded matrix.
func randBandedCSR(n, kl, ku int, rnd *rand.Rand) *sparse.Matrix {
	t := sparse.NewTriplet(n, n)
	for i := 0; i < n; i++ {
		for j := i - kl; j <= i+ku; j++ {
			if j < 0 || n <= j || j == i {
				continue
			}
			t.Append(i, j, 2*rnd.Float64()-1)
		}
		t.Append(i, i, float64(kl+ku+2)+rnd.Float64())
	}
	return t.ToCSR()
}

func TestNewPermutation(t *testing.T) {
	p := newPermutation([]int{2, 0, 3, 1})
	require.Equal(t, []int{1, 3, 0, 2}, p.oldToNew)
	for i, old := range p.newToOld {
		require.Equal(t, i, p.oldToNew[old])
	}
	require.Panics(t, func() { newPermutation([]int{0, 0, 1}) })
	require.Panics(t, func() { newPermutation([]int{0, 3}) })
}

func TestDBMatchScaling(t *testing.T) {
	// The largest entries sit off the diagonal.
	m := csrFromDense([][]float64{
		{0.1, 5, 0, 0},
		{4, 0.2, 1, 0},
		{0, 0.5, 0.1, 6},
		{0, 0, 3, 0.4},
	})
	match, rowScale, colScale, ok, err := dbMatch(m)
	require.NoError(t, err)
	require.True(t, ok)

	seen := make([]bool, 4)
	for _, j := range match {
		require.False(t, seen[j], "column matched twice")
		seen[j] = true
	}

	for i := 0; i < 4; i++ {
		require.Greater(t, rowScale[i], 0.0)
		require.Greater(t, colScale[i], 0.0)
	}

	// Every scaled entry is bounded by one and the matched entries
	// reach it.
	for i := 0; i < 4; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			s := rowScale[i] * math.Abs(vals[k]) * colScale[j]
			require.LessOrEqual(t, s, 1+1e-12, "entry (%d,%d)", i, j)
			if j == match[i] {
				require.InDelta(t, 1, s, 1e-12, "matched entry (%d,%d)", i, j)
			}
		}
	}
}

func TestDBMatchStructurallySingular(t *testing.T) {
	m := csrFromDense([][]float64{
		{1, 2, 0},
		{0, 0, 0},
		{0, 3, 1},
	})
	_, _, _, ok, err := dbMatch(m)
	require.NoError(t, err)
	require.False(t, ok)

	// Also singular without an empty row: all entries share a column.
	m = csrFromDense([][]float64{
		{1, 0, 0},
		{2, 0, 0},
		{3, 0, 1},
	})
	_, _, _, ok, err = dbMatch(m)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRCMPermutedPath(t *testing.T) {
	// A tridiagonal matrix scrambled by a random permutation. RCM must
	// recover an ordering with a small bandwidth.
	const n = 40
	rnd := rand.New(rand.NewSource(4))
	tri := randBandedCSR(n, 1, 1, rnd)
	perm := rnd.Perm(n)
	inv := make([]int, n)
	for i, p := range perm {
		inv[p] = i
	}
	scrambled := sparse.PermuteScale(tri, perm, inv, nil, nil)

	order := rcm(scrambled)
	q := newPermutation(order)
	back := sparse.PermuteScale(scrambled, q.newToOld, q.oldToNew, nil, nil)
	kl, ku := back.Bandwidth()
	require.LessOrEqual(t, max(kl, ku), 2)
}

func TestReorderComposition(t *testing.T) {
	const n = 30
	rnd := rand.New(rand.NewSource(5))
	m := randBandedCSR(n, 2, 3, rnd)
	opts := DefaultOptions()
	opts.NumPartitions = 3

	res, err := reorder(m, &opts)
	require.NoError(t, err)
	require.True(t, res.scaled)

	// The permuted matrix must be exactly the scaled original moved by
	// the recorded permutations.
	for p := 0; p < n; p++ {
		cols, vals := m.Row(p)
		for k, q := range cols {
			want := res.rowScale[p] * vals[k] * res.colScale[q]
			got := res.pm.At(res.rowPerm.oldToNew[p], res.colPerm.oldToNew[q])
			require.InDelta(t, want, got, 1e-14)
		}
	}
	require.Equal(t, m.NNZ(), res.pm.NNZ())
}

func TestReorderIdentityOptions(t *testing.T) {
	rnd := rand.New(rand.NewSource(6))
	m := randBandedCSR(20, 1, 1, rnd)
	opts := DefaultOptions()
	opts.NumPartitions = 2
	opts.PerformReorder = false
	opts.PerformDB = false
	opts.ApplyScaling = false

	res, err := reorder(m, &opts)
	require.NoError(t, err)
	require.False(t, res.scaled)
	require.Equal(t, res.bandwidthBefore, res.bandwidthAfter)
	for i := 0; i < 20; i++ {
		require.Equal(t, i, res.rowPerm.newToOld[i])
		require.Equal(t, i, res.colPerm.newToOld[i])
	}
}
