// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewPartitionSet(t *testing.T) {
	for _, tc := range []struct{ n, p int }{
		{n: 10, p: 1},
		{n: 10, p: 3},
		{n: 10, p: 10},
		{n: 7, p: 2},
		{n: 100, p: 8},
		{n: 3, p: 5}, // more partitions than rows
	} {
		ps := newPartitionSet(tc.n, tc.p)

		// Contiguous full coverage.
		require.Equal(t, 0, ps.start[0])
		require.Equal(t, tc.n, ps.start[ps.p])
		total := 0
		for i := 0; i < ps.p; i++ {
			sz := ps.size(i)
			require.Positive(t, sz)
			total += sz
		}
		require.Equal(t, tc.n, total)

		// Near-equal sizes.
		for i := 1; i < ps.p; i++ {
			d := ps.size(i) - ps.size(0)
			require.LessOrEqual(t, -1, d)
			require.LessOrEqual(t, d, 1)
		}

		// owner agrees with the start table.
		for r := 0; r < tc.n; r++ {
			i := ps.owner(r)
			require.LessOrEqual(t, ps.start[i], r)
			require.Less(t, r, ps.start[i+1])
		}
	}
}

func TestSetBandwidths(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	m := randBandedCSR(24, 2, 1, rnd)
	ps := newPartitionSet(24, 3)

	ps.setBandwidths(m, 2, 1, false)
	for i := 0; i < 3; i++ {
		require.Equal(t, 2, ps.kl[i])
		require.Equal(t, 1, ps.ku[i])
	}
	require.True(t, ps.constantBandwidth())
	for _, w := range ps.width {
		require.Equal(t, 2, w)
	}

	// Variable bandwidths never exceed the global ones.
	ps.setBandwidths(m, 2, 1, true)
	for i := 0; i < 3; i++ {
		require.LessOrEqual(t, ps.kl[i], 2)
		require.LessOrEqual(t, ps.ku[i], 1)
	}
}

func TestDropOffBandwidth(t *testing.T) {
	// Tridiagonal body with a pair of weak far entries.
	m := csrFromDense([][]float64{
		{4, 1, 0, 0, 1e-8},
		{1, 4, 1, 0, 0},
		{0, 1, 4, 1, 0},
		{0, 0, 1, 4, 1},
		{1e-8, 0, 0, 1, 4},
	})

	b, dropped := dropOffBandwidth(m, 0, 0)
	require.Equal(t, 4, b)
	require.Zero(t, dropped)

	b, dropped = dropOffBandwidth(m, 1e-6, 0)
	require.Equal(t, 1, b)
	require.InDelta(t, 2e-8/m.Mass(), dropped, 1e-20)

	// The cap alone also trims the far entries.
	b, dropped = dropOffBandwidth(m, 0, 2)
	require.Equal(t, 2, b)
	require.Greater(t, dropped, 0.0)
}

func TestExtractBands(t *testing.T) {
	rnd := rand.New(rand.NewSource(8))
	m := randBandedCSR(20, 1, 2, rnd)
	ps := newPartitionSet(20, 4)
	ps.setBandwidths(m, 1, 2, false)

	blocks, err := extractBands(m, ps)
	require.NoError(t, err)
	require.Len(t, blocks, 4)
	for i, b := range blocks {
		lo := ps.start[i]
		for r := lo; r < ps.start[i+1]; r++ {
			for c := lo; c < ps.start[i+1]; c++ {
				if c-r > 2 || r-c > 1 {
					continue
				}
				require.Equal(t, m.At(r, c), b.At(r-lo, c-lo))
			}
		}
	}
}

func TestExtractBandsEmptyRow(t *testing.T) {
	// Row 2 has entries only outside its partition block band.
	m := csrFromDense([][]float64{
		{2, 1, 0, 0},
		{1, 2, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 1, 2},
	})
	ps := newPartitionSet(4, 2)
	ps.setBandwidths(m, 0, 1, false)
	// Shrink the band so that the entry (2, 3) falls outside it.
	ps.ku[1] = 0

	_, err := extractBands(m, ps)
	var fe *FactorizationError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, MatrixSingular, fe.Reason)
	require.Equal(t, 1, fe.Partition)
}
