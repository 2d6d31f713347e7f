// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type mulVecFn func(dst, src []float64)
type psolveFn func(dst, src []float64) error

// bicgstabl runs the right-preconditioned BiCGStab(L) method on the
// system A P^{-1} y = b - A x0, where x0 is the initial guess in x,
// tracking progress through mon. Folding the guess into the right-hand
// side keeps the recurrence residual consistent with the true residual
// without a forward application of P. On return x holds x0 plus P^{-1}
// applied to the best iterate found, which is the final one when the
// monitor converged and otherwise the iterate with the smallest true
// residual norm encountered.
//
// Each outer cycle advances the monitor by one iteration in four
// quarter steps, one per sub-phase, so that the iteration limit is
// honored mid-cycle.
func bicgstabl(l int, mulVec mulVecFn, psolve psolveFn, x, b []float64, mon *monitor) error {
	n := len(b)

	rho0, alpha, omega := 1.0, 0.0, 1.0

	xx := make([]float64, n)
	xMin := make([]float64, n)
	pv := make([]float64, n)
	u := make([]float64, n)
	r := make([]float64, n)

	rr := make([][]float64, l+1)
	uu := make([][]float64, l+1)
	for k := 0; k <= l; k++ {
		rr[k] = make([]float64, n)
		uu[k] = make([]float64, n)
	}

	tao := make([][]float64, l+1)
	for i := range tao {
		tao[i] = make([]float64, l+1)
	}
	gamma := make([]float64, l+2)
	gammaP := make([]float64, l+2)
	gammaPP := make([]float64, l+2)
	sigma := make([]float64, l+2)

	// r0 <- b - A x0, the shifted right-hand side. xx starts at zero.
	x0 := make([]float64, n)
	copy(x0, x)
	r0 := make([]float64, n)
	mulVec(r0, x0)
	for i := range r0 {
		r0[i] = b[i] - r0[i]
	}
	rhs := make([]float64, n)
	copy(rhs, r0)
	copy(r, r0)
	copy(rr[0], r)

	rNormMin := floats.Norm(r, 2)
	rNorm := rNormMin
	rNormAct := rNorm

	// residual overwrites res with the true residual rhs - A P^{-1} xx,
	// which equals b - A(x0 + P^{-1} xx).
	residual := func(res []float64) (float64, error) {
		if err := psolve(pv, xx); err != nil {
			return 0, err
		}
		mulVec(res, pv)
		for i := range res {
			res[i] = rhs[i] - res[i]
		}
		return floats.Norm(res, 2), nil
	}

	done := false
	for !done {
		rho0 = -omega * rho0
		mon.increment(0.25)

		// BiCG part.
		for j := 0; j < l; j++ {
			rho1 := floats.Dot(rr[j], r0)
			if rho0 == 0 {
				mon.stop(-10, "rho0 is zero")
				done = true
				break
			}
			beta := alpha * rho1 / rho0
			rho0 = rho1
			for i := 0; i <= j; i++ {
				for k := range uu[i] {
					uu[i][k] = rr[i][k] - beta*uu[i][k]
				}
			}
			if err := psolve(pv, uu[j]); err != nil {
				return err
			}
			mulVec(uu[j+1], pv)
			g := floats.Dot(uu[j+1], r0)
			if g == 0 {
				mon.stop(-11, "gamma is zero")
				done = true
				break
			}
			alpha = rho0 / g
			for i := 0; i <= j; i++ {
				floats.AddScaled(rr[i], -alpha, uu[i+1])
			}
			rNorm = floats.Norm(rr[0], 2)
			rNormAct = rNorm
			if err := psolve(pv, rr[j]); err != nil {
				return err
			}
			mulVec(rr[j+1], pv)

			exhausted := mon.stagnationCheck(math.Abs(alpha)*floats.Norm(uu[0], 2), floats.Norm(xx, 2))
			floats.AddScaled(xx, alpha, uu[0])

			if mon.needCheckConvergence(rNorm) {
				var err error
				rNormAct, err = residual(rr[0])
				if err != nil {
					return err
				}
				if mon.finished(rNormAct) {
					done = true
					break
				}
			}
			if rNormAct < rNormMin {
				rNormMin = rNormAct
				copy(xMin, xx)
			}
			if exhausted {
				done = true
				break
			}
		}
		if done {
			break
		}

		// Minimal residual part: orthogonalize the residual basis and
		// derive the polynomial coefficients.
		for j := 1; j <= l; j++ {
			for i := 1; i < j; i++ {
				tao[i][j] = floats.Dot(rr[j], rr[i]) / sigma[i]
				floats.AddScaled(rr[j], -tao[i][j], rr[i])
			}
			sigma[j] = floats.Dot(rr[j], rr[j])
			if sigma[j] == 0 {
				mon.stop(-12, "a sigma value is zero")
				done = true
				break
			}
			gammaP[j] = floats.Dot(rr[j], rr[0]) / sigma[j]
		}
		if done {
			break
		}

		gamma[l] = gammaP[l]
		omega = gamma[l]
		for j := l - 1; j > 0; j-- {
			gamma[j] = gammaP[j]
			for i := j + 1; i <= l; i++ {
				gamma[j] -= tao[j][i] * gamma[i]
			}
		}
		for j := 1; j < l; j++ {
			gammaPP[j] = gamma[j+1]
			for i := j + 1; i < l; i++ {
				gammaPP[j] += tao[j][i] * gamma[i+1]
			}
		}

		exhausted := mon.stagnationCheck(math.Abs(gamma[1])*floats.Norm(rr[0], 2), floats.Norm(xx, 2))
		floats.AddScaled(xx, gamma[1], rr[0])
		floats.AddScaled(rr[0], -gammaP[l], rr[l])
		floats.AddScaled(uu[0], -gamma[l], uu[l])
		rNorm = floats.Norm(rr[0], 2)
		rNormAct = rNorm
		mon.increment(0.25)

		if mon.needCheckConvergence(rNorm) {
			var err error
			rNormAct, err = residual(rr[0])
			if err != nil {
				return err
			}
			if mon.finished(rNormAct) {
				break
			}
		}
		if rNormAct < rNormMin {
			rNormMin = rNormAct
			copy(xMin, xx)
		}
		if exhausted {
			break
		}
		mon.increment(0.25)

		for j := 1; j < l; j++ {
			floats.AddScaled(uu[0], -gamma[j], uu[j])

			exhausted = mon.stagnationCheck(math.Abs(gammaPP[j])*floats.Norm(rr[j], 2), floats.Norm(xx, 2))
			floats.AddScaled(xx, gammaPP[j], rr[j])
			floats.AddScaled(rr[0], -gammaP[j], rr[j])
			rNorm = floats.Norm(rr[0], 2)
			rNormAct = rNorm

			if mon.needCheckConvergence(rNorm) {
				var err error
				rNormAct, err = residual(rr[0])
				if err != nil {
					return err
				}
				if mon.finished(rNormAct) {
					done = true
					break
				}
			}
			if rNormAct < rNormMin {
				rNormMin = rNormAct
				copy(xMin, xx)
			}
			if exhausted {
				done = true
				break
			}
		}
		if done {
			break
		}

		copy(u, uu[0])
		copy(r, rr[0])
		mon.increment(0.25)
	}

	if mon.converged() {
		if err := psolve(x, xx); err != nil {
			return err
		}
		floats.Add(x, x0)
		return nil
	}

	// Not converged: pull back both the final iterate and the best one
	// seen and keep whichever has the smaller true residual.
	pxx := make([]float64, n)
	pxMin := make([]float64, n)
	w := make([]float64, n)
	if err := psolve(pxx, xx); err != nil {
		return err
	}
	floats.Add(pxx, x0)
	mulVec(w, pxx)
	rCompNorm := 0.0
	for i := range w {
		d := b[i] - w[i]
		rCompNorm += d * d
	}
	rCompNorm = math.Sqrt(rCompNorm)

	if err := psolve(pxMin, xMin); err != nil {
		return err
	}
	floats.Add(pxMin, x0)
	mulVec(w, pxMin)
	rCompMinNorm := 0.0
	for i := range w {
		d := b[i] - w[i]
		rCompMinNorm += d * d
	}
	rCompMinNorm = math.Sqrt(rCompMinNorm)

	if rCompNorm < rCompMinNorm {
		copy(x, pxx)
		mon.rNorm = rCompNorm
	} else {
		copy(x, pxMin)
		mon.rNorm = rCompMinNorm
	}
	return nil
}
