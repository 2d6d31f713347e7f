// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"errors"
	"fmt"
)

// Reason identifies the cause of a fatal factorization failure.
type Reason int

const (
	// ZeroPivoting means a diagonal pivot became exactly or nearly
	// zero during a safe banded factorization.
	ZeroPivoting Reason = iota + 1
	// NegativeDBWeight means the diagonal boosting pass produced a
	// negative matching weight, which violates an internal invariant.
	NegativeDBWeight
	// IllegalUpdate means an elimination update addressed a position
	// outside the allocated band.
	IllegalUpdate
	// IllegalSolve means a solve was attempted without a prior
	// successful setup.
	IllegalSolve
	// MatrixSingular means the matrix, a partition block or the
	// reduced system is singular.
	MatrixSingular
)

func (r Reason) String() string {
	switch r {
	case ZeroPivoting:
		return "zero pivoting"
	case NegativeDBWeight:
		return "negative DB weight"
	case IllegalUpdate:
		return "illegal update"
	case IllegalSolve:
		return "illegal solve"
	case MatrixSingular:
		return "matrix singular"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// FactorizationError reports a fatal failure during preconditioner
// setup or an illegal solve. It aborts the whole setup; no partial
// preconditioner state is retained.
type FactorizationError struct {
	Reason Reason
	// Partition is the index of the failing partition, or -1 when the
	// failure is not tied to one.
	Partition int
	Detail    string
}

func (e *FactorizationError) Error() string {
	s := "sap: " + e.Reason.String()
	if e.Partition >= 0 {
		s += fmt.Sprintf(" (partition %d)", e.Partition)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func factorErr(r Reason, part int, detail string) error {
	return &FactorizationError{Reason: r, Partition: part, Detail: detail}
}

// ErrOutOfMemory is returned when the estimated memory footprint of a
// setup or solve exceeds Options.MemoryLimit. The caller may retry with
// fewer partitions, a bandwidth cap or a heavier drop-off fraction.
var ErrOutOfMemory = errors.New("sap: out of memory")
