// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import "time"

// Stats holds diagnostic counters and timings of the last setup and
// solve. It is written by the Solver and only read by the caller.
type Stats struct {
	// Converged reports whether the last solve reached the requested
	// tolerance.
	Converged bool
	// Iterations is the number of Krylov iterations of the last solve.
	// BiCGStab(L) advances it in fractional steps matching the
	// algorithm sub-phases.
	Iterations float64
	// ResidualNorm is the 2-norm of the final true residual.
	ResidualNorm float64
	// RelResidualNorm is ResidualNorm divided by the 2-norm of the
	// right-hand side.
	RelResidualNorm float64

	// BandwidthOriginal and BandwidthReorder are the matrix
	// half-bandwidths before and after reordering.
	BandwidthOriginal int
	BandwidthReorder  int
	// ScalingApplied reports whether the diagonal boosting pass
	// succeeded and its scale factors were applied.
	ScalingApplied bool
	// ActualDropOff is the fraction of the matrix element-wise 1-norm
	// that was dropped outside the band.
	ActualDropOff float64

	// Setup phase timings.
	TimeReorder       time.Duration
	TimePartition     time.Duration
	TimeFactor        time.Duration
	TimeAssembly      time.Duration
	TimeReducedFactor time.Duration
	TimeSetup         time.Duration
	// TimeSolve is the duration of the last solve.
	TimeSolve time.Duration
}
