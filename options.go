// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"errors"
	"fmt"
	"runtime"
)

// SolverType selects the Krylov method driving the solve.
type SolverType int

const (
	// BiCGStab2 is BiCGStab(L) with L=2, the default.
	BiCGStab2 SolverType = iota
	// BiCGStab1 is BiCGStab(L) with L=1.
	BiCGStab1
	// BiCGStab is the classical stabilized biconjugate gradient
	// method.
	BiCGStab
	// CG is the conjugate gradient method for symmetric positive
	// definite systems.
	CG
	// CR is the conjugate residual method for symmetric systems.
	CR
	// BiCG is the biconjugate gradient method.
	BiCG
	// GMRES is the generalized minimum residual method.
	GMRES
)

func (t SolverType) String() string {
	switch t {
	case BiCGStab2:
		return "BiCGStab2"
	case BiCGStab1:
		return "BiCGStab1"
	case BiCGStab:
		return "BiCGStab"
	case CG:
		return "CG"
	case CR:
		return "CR"
	case BiCG:
		return "BiCG"
	case GMRES:
		return "GMRES"
	}
	return fmt.Sprintf("SolverType(%d)", int(t))
}

// PrecondType selects the preconditioner applied to the system.
type PrecondType int

const (
	// Spike is the full SPIKE preconditioner with the reduced-system
	// coupling correction, the default.
	Spike PrecondType = iota
	// BlockDiagonal solves each partition's band independently and
	// skips the coupling correction.
	BlockDiagonal
	// None disables preconditioning.
	None
)

func (t PrecondType) String() string {
	switch t {
	case Spike:
		return "Spike"
	case BlockDiagonal:
		return "BlockDiagonal"
	case None:
		return "None"
	}
	return fmt.Sprintf("PrecondType(%d)", int(t))
}

// FactMethod selects how partition bands are factorized.
type FactMethod int

const (
	// LUUL factors each band twice, by LU from the top and by UL from
	// the bottom, and extracts the left spikes from the better
	// conditioned UL factors. It requires a constant bandwidth across
	// partitions.
	LUUL FactMethod = iota
	// LUOnly performs a single LU sweep per band. It is cheaper and is
	// required when partition bandwidths vary.
	LUOnly
)

func (m FactMethod) String() string {
	switch m {
	case LUUL:
		return "LU_UL"
	case LUOnly:
		return "LU_only"
	}
	return fmt.Sprintf("FactMethod(%d)", int(m))
}

// Options configures a Solver. Use DefaultOptions as the starting point;
// the zero value is not a valid configuration.
type Options struct {
	// NumPartitions is the number of contiguous row partitions the
	// matrix is split into. It must be positive.
	NumPartitions int

	// SolverType selects the Krylov method.
	SolverType SolverType

	// PrecondType selects the preconditioner.
	PrecondType PrecondType

	// FactMethod selects the banded factorization strategy.
	FactMethod FactMethod

	// PerformReorder enables the bandwidth reducing reordering pass.
	PerformReorder bool

	// PerformDB enables the diagonal boosting matching pass that
	// permutes large entries onto the diagonal.
	PerformDB bool

	// ApplyScaling applies the row and column scale factors produced
	// by the matching pass. It requires PerformDB.
	ApplyScaling bool

	// VariableBandwidth lets every partition use its own half
	// bandwidths. It requires FactMethod LUOnly.
	VariableBandwidth bool

	// MaxBandwidth caps the half-bandwidth of every partition. Zero
	// means no cap.
	MaxBandwidth int

	// DropOffFraction is the fraction of the matrix element-wise
	// 1-norm that may be dropped outside the band to shrink the
	// factorization cost. It must be in [0, 1).
	DropOffFraction float64

	// RelTol and AbsTol define the convergence bound
	//  max(AbsTol, RelTol * |b|).
	RelTol, AbsTol float64

	// MaxIterations is the limit on the number of outer Krylov
	// iterations. If it is zero, it will be set to twice the dimension
	// of the system.
	MaxIterations int

	// SafeFactorization enables pivot magnitude and band bounds checks
	// during factorization so that numerical failure is reported
	// instead of producing non-finite factors.
	SafeFactorization bool

	// IsSPD declares the matrix symmetric positive definite. It forces
	// the CG solver and disables the matching and scaling passes.
	IsSPD bool

	// UseBCR solves the reduced system by block cyclic reduction
	// instead of a single dense LU. It requires a constant bandwidth.
	UseBCR bool

	// MaxWorkers limits the number of concurrent workers used for the
	// per-partition phases. Zero or a value above runtime.GOMAXPROCS(0)
	// is clipped to runtime.GOMAXPROCS(0).
	MaxWorkers int

	// MemoryLimit bounds the estimated memory footprint of the
	// preconditioner state in bytes. Exceeding it reports
	// ErrOutOfMemory. Zero means no limit.
	MemoryLimit int64
}

// DefaultOptions returns the recommended configuration for a general
// nonsymmetric system. NumPartitions must still be set by the caller.
func DefaultOptions() Options {
	return Options{
		SolverType:     BiCGStab2,
		PrecondType:    Spike,
		FactMethod:     LUUL,
		PerformReorder: true,
		PerformDB:      true,
		ApplyScaling:   true,
		RelTol:         1e-6,
	}
}

func (o *Options) validate() error {
	if o.NumPartitions <= 0 {
		return errors.New("sap: NumPartitions must be positive")
	}
	if o.DropOffFraction < 0 || 1 <= o.DropOffFraction {
		return errors.New("sap: DropOffFraction out of [0,1)")
	}
	if o.ApplyScaling && !o.PerformDB {
		return errors.New("sap: ApplyScaling requires PerformDB")
	}
	if o.VariableBandwidth && o.FactMethod == LUUL {
		return errors.New("sap: VariableBandwidth requires FactMethod LUOnly")
	}
	if o.UseBCR && o.VariableBandwidth {
		return errors.New("sap: UseBCR requires a constant bandwidth")
	}
	if o.UseBCR && o.SolverType == BiCG {
		return errors.New("sap: BiCG needs the dense reduced system")
	}
	if o.RelTol < 0 || o.AbsTol < 0 {
		return errors.New("sap: negative tolerance")
	}
	if o.MaxBandwidth < 0 {
		return errors.New("sap: negative MaxBandwidth")
	}
	if o.MaxIterations < 0 {
		return errors.New("sap: negative MaxIterations")
	}
	return nil
}

// workers returns the worker limit for concurrent per-partition phases.
func (o *Options) workers() int {
	nw := runtime.GOMAXPROCS(0)
	if o.MaxWorkers > 0 && o.MaxWorkers < nw {
		return o.MaxWorkers
	}
	return nw
}
