// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iterative

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// CR implements the conjugate residual iterative method with
// preconditioning for solving the system of linear equations
//
//	Ax = b,
//
// where A is a symmetric matrix. Unlike CG, A does not have to be
// positive definite.
//
// CR needs MatVec and PSolve matrix operations.
type CR struct {
	first  bool
	resume int

	rho, rhoPrev float64

	z   []float64
	p   []float64
	az  []float64
	ap  []float64
	pap []float64
}

// Init implements the Method interface.
func (cr *CR) Init(dim int) {
	if dim <= 0 {
		panic("iterative: dimension not positive")
	}

	cr.z = reuse(cr.z, dim)
	cr.p = reuse(cr.p, dim)
	cr.az = reuse(cr.az, dim)
	cr.ap = reuse(cr.ap, dim)
	cr.pap = reuse(cr.pap, dim)

	cr.first = true
	cr.resume = 1
}

// Iterate implements the Method interface.
func (cr *CR) Iterate(ctx *Context) (Operation, error) {
	switch cr.resume {
	case 1:
		ctx.Src = ctx.Residual
		ctx.Dst = cr.z
		cr.resume = 2
		return PSolve, nil
		// Solve M z = r_0
	case 2:
		ctx.Src = cr.z
		ctx.Dst = cr.az
		cr.resume = 3
		return MatVec, nil
		// Compute Az
	case 3:
		cr.rho = floats.Dot(cr.z, cr.az) // ρ_i = z · Az
		if math.Abs(cr.rho) < dlamchE*dlamchE {
			cr.resume = 0 // Calling Iterate again without Init will panic.
			return NoOperation, errors.New("iterative: rho breakdown")
		}
		if cr.first {
			copy(cr.p, cr.z)
			copy(cr.ap, cr.az)
		} else {
			beta := cr.rho / cr.rhoPrev
			floats.AddScaledTo(cr.p, cr.z, beta, cr.p)    // p_i = z + β p_{i-1}
			floats.AddScaledTo(cr.ap, cr.az, beta, cr.ap) // Ap_i = Az + β Ap_{i-1}
		}
		ctx.Src = cr.ap
		ctx.Dst = cr.pap
		cr.resume = 4
		return PSolve, nil
		// Solve M q = Ap_i
	case 4:
		alpha := cr.rho / floats.Dot(cr.ap, cr.pap) // α = ρ_i / (Ap_i · M⁻¹Ap_i)
		floats.AddScaled(ctx.X, alpha, cr.p)        // x_i = x_{i-1} + α p_i
		floats.AddScaled(ctx.Residual, -alpha, cr.ap)
		floats.AddScaled(cr.z, -alpha, cr.pap) // z_i = z_{i-1} - α M⁻¹Ap_i
		ctx.Src = nil
		ctx.Dst = nil
		ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
		ctx.Converged = false
		cr.resume = 5
		return CheckResidualNorm, nil
	case 5:
		if ctx.Converged {
			cr.resume = 0 // Calling Iterate again without Init will panic.
			return EndIteration, nil
		}
		cr.rhoPrev = cr.rho
		cr.first = false
		cr.resume = 2
		return EndIteration, nil

	default:
		panic("iterative: CR.Init not called")
	}
}
