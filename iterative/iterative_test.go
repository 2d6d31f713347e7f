// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iterative

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

type testCase struct {
	name  string
	n     int
	iters int
	tol   float64
	a     MatrixOps
}

// randomSPD returns a random symmetric positive-definite system of
// dimension n.
func randomSPD(n int, rnd *rand.Rand) testCase {
	a := make([]float64, n*n)
	lda := n
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a[i*lda+j] = rnd.Float64()
		}
	}
	for i := 0; i < n; i++ {
		a[i*lda+i] += float64(n)
	}
	bi := blas64.Implementation()
	return testCase{
		name:  fmt.Sprintf("randomSPD(%v)", n),
		n:     n,
		iters: 2 * n,
		tol:   1e-9,
		a: MatrixOps{
			MatVec: func(dst, x []float64) {
				bi.Dsymv(blas.Upper, n, 1, a, lda, x, 1, 0, dst, 1)
			},
			MatTransVec: func(dst, x []float64) {
				bi.Dsymv(blas.Upper, n, 1, a, lda, x, 1, 0, dst, 1)
			},
		},
	}
}

// randomBand returns a random non-symmetric diagonally dominant banded
// system of dimension n.
func randomBand(n, kl, ku int, rnd *rand.Rand) testCase {
	a := make([]float64, n*n)
	lda := n
	for i := 0; i < n; i++ {
		var sum float64
		for j := max(0, i-kl); j <= min(n-1, i+ku); j++ {
			if j == i {
				continue
			}
			a[i*lda+j] = 2*rnd.Float64() - 1
			sum += 1
		}
		a[i*lda+i] = sum + 1 + rnd.Float64()
	}
	bi := blas64.Implementation()
	return testCase{
		name:  fmt.Sprintf("randomBand(%v,%v,%v)", n, kl, ku),
		n:     n,
		iters: 4 * n,
		tol:   1e-8,
		a: MatrixOps{
			MatVec: func(dst, x []float64) {
				bi.Dgemv(blas.NoTrans, n, n, 1, a, lda, x, 1, 0, dst, 1)
			},
			MatTransVec: func(dst, x []float64) {
				bi.Dgemv(blas.Trans, n, n, 1, a, lda, x, 1, 0, dst, 1)
			},
		},
	}
}

func spdCases(rnd *rand.Rand) []testCase {
	return []testCase{
		randomSPD(1, rnd),
		randomSPD(2, rnd),
		randomSPD(3, rnd),
		randomSPD(4, rnd),
		randomSPD(5, rnd),
		randomSPD(10, rnd),
		randomSPD(20, rnd),
		randomSPD(50, rnd),
		randomSPD(100, rnd),
		randomSPD(200, rnd),
		randomSPD(500, rnd),
	}
}

func nonsymCases(rnd *rand.Rand) []testCase {
	return []testCase{
		randomBand(1, 0, 0, rnd),
		randomBand(2, 1, 1, rnd),
		randomBand(3, 1, 2, rnd),
		randomBand(5, 2, 1, rnd),
		randomBand(10, 3, 3, rnd),
		randomBand(20, 2, 5, rnd),
		randomBand(50, 4, 4, rnd),
		randomBand(100, 8, 3, rnd),
		randomBand(200, 6, 6, rnd),
		randomBand(500, 10, 10, rnd),
	}
}
