// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sap solves sparse linear systems A x = b with Krylov methods
// preconditioned by a banded SPIKE approximation of A.
//
// The preconditioner is built in Setup: the matrix is optionally
// permuted to boost its diagonal and reduce its bandwidth, split into
// row partitions, each partition's band is factorized independently,
// and the coupling between partitions is condensed into a small reduced
// system on the interface unknowns. Solve then runs the selected Krylov
// method, applying the preconditioner by parallel banded solves plus
// one reduced solve per application.
package sap

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/Milad-Rakhsha/SaPLibrary/iterative"
	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
)

// ErrMaxIterations is returned by Solve when the iteration limit is
// reached without convergence. The solution vector holds the best
// iterate found.
var ErrMaxIterations = errors.New("sap: maximum number of iterations reached")

// ErrStagnated is returned by Solve when the iterate stopped changing
// at working precision without converging.
var ErrStagnated = errors.New("sap: solver stagnated")

// BreakdownError is returned by Solve when a scalar of the Krylov
// recurrence vanished and the method cannot continue.
type BreakdownError struct {
	Code    int
	Message string
}

func (e *BreakdownError) Error() string {
	return fmt.Sprintf("sap: breakdown (%d): %s", e.Code, e.Message)
}

// Solver solves sparse linear systems with a SPIKE preconditioned
// Krylov method. A Solver is created once per configuration, set up
// once per matrix and may then solve for any number of right-hand
// sides. It is not safe for concurrent use.
type Solver struct {
	opts Options
	n    int

	a  *sparse.Matrix
	pc *precond

	stats  Stats
	status Status
	ready  bool
}

// New returns a solver with the given options. A declared symmetric
// positive definite system forces the CG method and disables the
// matching and scaling passes, which would destroy symmetry.
func New(opts Options) (*Solver, error) {
	if opts.IsSPD {
		opts.SolverType = CG
		opts.PerformDB = false
		opts.ApplyScaling = false
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Solver{opts: opts}, nil
}

// Options returns the configuration the solver was created with, after
// normalization.
func (s *Solver) Options() Options { return s.opts }

// Setup factorizes the SPIKE preconditioner for the matrix a. It must
// be called before Solve and again whenever the matrix changes. On
// error the solver keeps no partial state and Solve will refuse to run.
func (s *Solver) Setup(a *sparse.Matrix) error {
	r, c := a.Dims()
	if r != c {
		panic("sap: matrix is not square")
	}
	s.ready = false
	s.pc = nil
	s.stats = Stats{}
	s.status = Active
	s.n = r
	s.a = a
	if s.opts.PrecondType != None {
		start := time.Now()
		pc, err := newPrecond(a, &s.opts, &s.stats)
		if err != nil {
			return err
		}
		s.pc = pc
		s.stats.TimeSetup = time.Since(start)
	}
	s.ready = true
	return nil
}

// Stats returns the counters and timings of the last Setup and Solve.
func (s *Solver) Stats() Stats { return s.stats }

// Status returns the monitor state of the last Solve.
func (s *Solver) Status() Status { return s.status }

// Solve runs the configured Krylov method on A x = b. On entry x holds
// the initial guess; on return it holds the approximate solution, which
// for the BiCGStab(L) methods is the iterate with the smallest true
// residual seen even when the solve did not converge.
func (s *Solver) Solve(x, b []float64) error {
	if !s.ready {
		return factorErr(IllegalSolve, -1, "no successful Setup")
	}
	if len(x) != s.n || len(b) != s.n {
		panic("sap: dimension mismatch")
	}

	start := time.Now()
	defer func() {
		s.stats.TimeSolve = time.Since(start)
	}()

	maxIter := s.opts.MaxIterations
	if maxIter == 0 {
		maxIter = 2 * s.n
	}
	bNorm := floats.Norm(b, 2)
	mon := newMonitor(&s.opts, maxIter)
	mon.init(bNorm)

	// The zero vector already meets the tolerance.
	if bNorm <= mon.threshold {
		for i := range x {
			x[i] = 0
		}
		mon.finished(bNorm)
		s.finish(mon, bNorm)
		return nil
	}

	mulVec := s.a.MulVec
	identity := func(dst, src []float64) error {
		copy(dst, src)
		return nil
	}
	psolve, psolveTrans := identity, identity
	if s.pc != nil {
		psolve = s.pc.apply
		psolveTrans = s.pc.applyTrans
	}

	switch s.opts.SolverType {
	case BiCGStab2, BiCGStab1:
		l := 2
		if s.opts.SolverType == BiCGStab1 {
			l = 1
		}
		err := bicgstabl(l, mulVec, psolve, x, b, mon)
		s.finish(mon, bNorm)
		if err != nil {
			return err
		}
		return s.statusErr(mon)
	}

	// The remaining methods run through the reverse communication
	// framework, which uses a purely relative criterion. Fold the
	// absolute tolerance into it.
	tol := s.opts.RelTol
	if t := s.opts.AbsTol / bNorm; t > tol {
		tol = t
	}
	if tol < 2*machEps {
		tol = 2 * machEps
	}

	var method iterative.Method
	switch s.opts.SolverType {
	case CG:
		method = &iterative.CG{}
	case CR:
		method = &iterative.CR{}
	case BiCG:
		method = &iterative.BiCG{}
	case BiCGStab:
		method = &iterative.BiCGSTAB{}
	case GMRES:
		method = &iterative.GMRES{}
	default:
		panic("sap: unknown solver type")
	}

	res, err := iterative.LinearSolve(iterative.MatrixOps{
		MatVec:      mulVec,
		MatTransVec: s.a.MulTransVec,
	}, b, method, iterative.Settings{
		X0:            x,
		Tolerance:     tol,
		MaxIterations: maxIter,
		PSolve:        psolve,
		PSolveTrans:   psolveTrans,
	})
	copy(x, res.X)
	mon.iter = float64(res.Stats.Iterations)
	switch {
	case err == nil:
		mon.finished(res.Stats.ResidualNorm)
	case errors.Is(err, iterative.ErrIterationLimit):
		mon.rNorm = res.Stats.ResidualNorm
		mon.status = MaxIterationsReached
		mon.code = -1
	default:
		mon.stop(-13, err.Error())
	}
	s.finish(mon, bNorm)
	return s.statusErr(mon)
}

func (s *Solver) finish(mon *monitor, bNorm float64) {
	s.status = mon.status
	s.stats.Converged = mon.converged()
	s.stats.Iterations = mon.iter
	s.stats.ResidualNorm = mon.rNorm
	if bNorm > 0 {
		s.stats.RelResidualNorm = mon.rNorm / bNorm
	} else {
		s.stats.RelResidualNorm = 0
	}
}

func (s *Solver) statusErr(mon *monitor) error {
	switch mon.status {
	case ConvergedAbsolute, ConvergedRelative:
		return nil
	case MaxIterationsReached:
		return ErrMaxIterations
	case Stagnated:
		return ErrStagnated
	case Breakdown:
		return &BreakdownError{Code: mon.code, Message: mon.message}
	}
	return nil
}
