// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import "fmt"

// machEps is the double precision machine epsilon.
const machEps = 1.0 / (1 << 53)

// stagEps is the threshold for an update to count as stagnant relative
// to the iterate magnitude.
const stagEps = 1e-20

// stagnationBudget is the number of consecutive stagnant updates
// tolerated before the solve is abandoned.
const stagnationBudget = 20

// Status is the state of a convergence monitor.
type Status int

const (
	// Active means the solve is still iterating.
	Active Status = iota
	// ConvergedAbsolute means the residual norm fell below the
	// absolute tolerance.
	ConvergedAbsolute
	// ConvergedRelative means the residual norm fell below the
	// relative tolerance times the right-hand side norm.
	ConvergedRelative
	// MaxIterationsReached means the iteration limit was hit before
	// convergence.
	MaxIterationsReached
	// Stagnated means the iterate stopped changing at working
	// precision without converging.
	Stagnated
	// Breakdown means a scalar of the recurrence vanished and the
	// method cannot continue.
	Breakdown
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case ConvergedAbsolute:
		return "converged (absolute tolerance)"
	case ConvergedRelative:
		return "converged (relative tolerance)"
	case MaxIterationsReached:
		return "maximum iterations reached"
	case Stagnated:
		return "stagnated"
	case Breakdown:
		return "breakdown"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// monitor tracks the progress of one solve. The iteration counter is a
// float so that methods composed of sub-phases can advance it in
// fractions; the limit check uses the accumulated value.
type monitor struct {
	relTol, absTol float64
	maxIter        float64

	iter      float64
	bNorm     float64
	threshold float64
	rNorm     float64

	status   Status
	code     int
	message  string
	stagnant int
}

func newMonitor(opts *Options, maxIter int) *monitor {
	return &monitor{
		relTol:  opts.RelTol,
		absTol:  opts.AbsTol,
		maxIter: float64(maxIter),
	}
}

// init arms the monitor for a right-hand side with the given 2-norm.
func (m *monitor) init(bNorm float64) {
	m.iter = 0
	m.bNorm = bNorm
	m.threshold = m.relTol * bNorm
	if m.absTol > m.threshold {
		m.threshold = m.absTol
	}
	m.status = Active
	m.code = 0
	m.message = ""
	m.stagnant = 0
	m.rNorm = bNorm
}

func (m *monitor) increment(d float64) { m.iter += d }

// needCheckConvergence reports whether the cheap residual estimate
// warrants computing the true residual. Stagnation pressure and an
// exhausted iteration budget force the check regardless of the
// estimate, so that finished can settle the state.
func (m *monitor) needCheckConvergence(est float64) bool {
	return est <= m.threshold || m.stagnant > 0 || m.iter >= m.maxIter
}

// finished folds a true residual norm into the state machine. It
// returns true when the solve is over, either converged or out of
// iterations.
func (m *monitor) finished(rNorm float64) bool {
	m.rNorm = rNorm
	if rNorm <= m.threshold {
		if rNorm <= m.absTol {
			m.status = ConvergedAbsolute
		} else {
			m.status = ConvergedRelative
		}
		return true
	}
	if m.iter >= m.maxIter {
		m.status = MaxIterationsReached
		m.code = -1
		return true
	}
	return false
}

// stagnationCheck accumulates consecutive updates that are negligible
// against the iterate and reports whether the stagnation budget is
// exhausted. A meaningful update resets the count.
func (m *monitor) stagnationCheck(updNorm, xNorm float64) bool {
	if updNorm < stagEps*xNorm {
		m.stagnant++
		if m.stagnant >= stagnationBudget {
			m.status = Stagnated
			m.code = -2
			return true
		}
		return false
	}
	m.stagnant = 0
	return false
}

// stop records a breakdown with a method specific code.
func (m *monitor) stop(code int, message string) {
	m.status = Breakdown
	m.code = code
	m.message = message
}

func (m *monitor) converged() bool {
	return m.status == ConvergedAbsolute || m.status == ConvergedRelative
}
