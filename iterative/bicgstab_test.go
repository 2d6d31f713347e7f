// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iterative

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestBiCGSTAB(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	cases := append(spdCases(rnd), nonsymCases(rnd)...)
	for _, tc := range cases {
		n := tc.n
		A := tc.a
		// Compute the right-hand side b so that the vector [1,1,...,1]
		// is the solution.
		want := make([]float64, n)
		for i := range want {
			want[i] = 1
		}
		b := make([]float64, n)
		A.MatVec(b, want)

		r, err := LinearSolve(A, b, &BiCGSTAB{}, Settings{
			MaxIterations: 10 * tc.iters,
			Tolerance:     1e-12,
		})
		if err != nil {
			t.Errorf("Case %v: unexpected error %v", tc.name, err)
			continue
		}
		dist := floats.Distance(r.X, want, math.Inf(1))
		if dist > tc.tol {
			t.Errorf("Case %v: unexpected solution, |want-got|=%v", tc.name, dist)
		}
	}
}
