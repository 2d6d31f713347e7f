// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Milad-Rakhsha/SaPLibrary/internal/band"
	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
	"gonum.org/v1/gonum/mat"
)

// precond is the factored SPIKE preconditioner of one matrix. It is
// built once by newPrecond and then applied repeatedly; apply is not
// safe for concurrent use because it reuses internal scratch buffers.
type precond struct {
	opts *Options
	n    int

	reo *reorderResult
	ps  *partitionSet
	lu  []*band.Matrix
	ul  []*band.Matrix
	bc  []coupling
	red *reducedSystem

	// Scratch reused across applies.
	v2   []float64
	y    []float64
	rhs  []float64
	gred []float64
}

// newPrecond runs the whole setup pipeline: reordering and scaling,
// partitioning with drop-off, banded factorization, spike assembly and
// the reduced system factorization. It fills the setup fields of stats
// as it goes. On any error no preconditioner state is returned.
func newPrecond(m *sparse.Matrix, opts *Options, stats *Stats) (*precond, error) {
	n, _ := m.Dims()
	p := &precond{opts: opts, n: n}

	start := time.Now()
	reo, err := reorder(m, opts)
	if err != nil {
		return nil, err
	}
	p.reo = reo
	stats.BandwidthOriginal = reo.bandwidthBefore
	stats.BandwidthReorder = reo.bandwidthAfter
	stats.ScalingApplied = reo.scaled
	stats.TimeReorder = time.Since(start)

	t := time.Now()
	b, dropped := dropOffBandwidth(reo.pm, opts.DropOffFraction, opts.MaxBandwidth)
	stats.ActualDropOff = dropped
	kl, ku := reo.pm.Bandwidth()
	kl = min(kl, b)
	ku = min(ku, b)
	ps := newPartitionSet(n, opts.NumPartitions)
	ps.setBandwidths(reo.pm, kl, ku, opts.VariableBandwidth)
	p.ps = ps
	if opts.UseBCR && !ps.constantBandwidth() {
		return nil, factorErr(MatrixSingular, -1, "block cyclic reduction needs a constant bandwidth")
	}
	stats.TimePartition = time.Since(t)

	if opts.MemoryLimit > 0 && p.estimateBytes() > opts.MemoryLimit {
		return nil, ErrOutOfMemory
	}

	t = time.Now()
	blocks, err := extractBands(reo.pm, ps)
	if err != nil {
		return nil, err
	}
	p.lu = blocks
	useUL := opts.FactMethod == LUUL && opts.PrecondType == Spike
	p.ul = make([]*band.Matrix, ps.p)
	var g errgroup.Group
	g.SetLimit(opts.workers())
	for i := 0; i < ps.p; i++ {
		i := i
		g.Go(func() error {
			if useUL && i > 0 {
				p.ul[i] = p.lu[i].Clone()
				if err := p.ul[i].FactorUL(opts.SafeFactorization); err != nil {
					return bandErr(err, i)
				}
			}
			if err := p.lu[i].FactorLU(opts.SafeFactorization); err != nil {
				return bandErr(err, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.TimeFactor = time.Since(t)

	if opts.PrecondType == Spike && ps.p > 1 {
		t = time.Now()
		p.bc = extractCoupling(reo.pm, ps)
		tips := newInterfaceTips(ps)
		var tg errgroup.Group
		tg.SetLimit(opts.workers())
		for i := 0; i < ps.p; i++ {
			i := i
			tg.Go(func() error {
				computeTips(i, ps, p.lu[i], p.ul[i], p.bc, tips)
				return nil
			})
		}
		tg.Wait()
		stats.TimeAssembly = time.Since(t)

		t = time.Now()
		red, err := newReducedSystem(ps, tips, opts.UseBCR)
		if err != nil {
			return nil, err
		}
		p.red = red
		p.gred = make([]float64, red.dim)
		stats.TimeReducedFactor = time.Since(t)
	}

	p.v2 = make([]float64, n)
	p.y = make([]float64, n)
	p.rhs = make([]float64, n)
	stats.TimeSetup = time.Since(start)
	return p, nil
}

func bandErr(err error, part int) error {
	be, ok := err.(*band.Error)
	if !ok {
		return err
	}
	switch be.Kind {
	case band.ZeroPivot:
		return factorErr(ZeroPivoting, part, be.Error())
	case band.OutOfBand:
		return factorErr(IllegalUpdate, part, be.Error())
	}
	return factorErr(MatrixSingular, part, be.Error())
}

// estimateBytes bounds the footprint of the factors, the spikes and the
// reduced system before anything is allocated.
func (p *precond) estimateBytes() int64 {
	const f = 8 // bytes per float64
	var est int64
	passes := int64(1)
	if p.opts.FactMethod == LUUL {
		passes = 2
	}
	for i := 0; i < p.ps.p; i++ {
		est += passes * f * int64(p.ps.size(i)) * int64(p.ps.kl[i]+p.ps.ku[i]+1)
	}
	var dim int64
	for _, k := range p.ps.width {
		// Coupling blocks and four tip blocks per interface.
		est += 6 * f * int64(k) * int64(k)
		dim += 2 * int64(k)
	}
	if p.opts.UseBCR {
		// Per stage the folded couplings stay dense 2k×2k.
		est += 4 * f * dim * dim / int64(max(p.ps.p-1, 1))
	} else {
		est += f * dim * dim
	}
	// Scratch vectors.
	est += 3 * f * int64(p.n)
	return est
}

// apply overwrites dst with the action of the preconditioner inverse on
// src: the right-hand side is pushed through the row permutation and
// scaling, solved partition by partition with the coupling correction
// from the reduced system, and pulled back through the column side.
func (p *precond) apply(dst, src []float64) error {
	ps := p.ps
	rp := p.reo.rowPerm.newToOld
	for i := 0; i < p.n; i++ {
		v := src[rp[i]]
		if p.reo.scaled {
			v *= p.reo.rowScale[rp[i]]
		}
		p.v2[i] = v
	}

	// First sweep: independent block solves.
	copy(p.y, p.v2)
	var g errgroup.Group
	g.SetLimit(p.opts.workers())
	for i := 0; i < ps.p; i++ {
		i := i
		g.Go(func() error {
			p.lu[i].SolveLU(p.y[ps.start[i]:ps.start[i+1]])
			return nil
		})
	}
	g.Wait()

	if p.red != nil {
		// Couple the partitions through the reduced system.
		for j := 0; j+1 < ps.p; j++ {
			k := ps.width[j]
			o := p.red.off[j]
			copy(p.gred[o:o+k], p.y[ps.start[j+1]-k:ps.start[j+1]])
			copy(p.gred[o+k:o+2*k], p.y[ps.start[j+1]:ps.start[j+1]+k])
		}
		if err := p.red.solve(p.gred); err != nil {
			return err
		}

		// Second sweep with the interface values eliminated.
		copy(p.rhs, p.v2)
		for j := 0; j+1 < ps.p; j++ {
			k := ps.width[j]
			o := p.red.off[j]
			xb := p.gred[o : o+k]
			xt := p.gred[o+k : o+2*k]
			// B_j x_{j+1}^t lands in the bottom rows of partition j.
			base := ps.start[j+1] - k
			for r := 0; r < k; r++ {
				var sum float64
				for c := 0; c < k; c++ {
					sum += p.bc[j].B.At(r, c) * xt[c]
				}
				p.rhs[base+r] -= sum
			}
			// C_j x_j^b lands in the top rows of partition j+1.
			base = ps.start[j+1]
			for r := 0; r < k; r++ {
				var sum float64
				for c := 0; c < k; c++ {
					sum += p.bc[j].C.At(r, c) * xb[c]
				}
				p.rhs[base+r] -= sum
			}
		}
		copy(p.y, p.rhs)
		var g2 errgroup.Group
		g2.SetLimit(p.opts.workers())
		for i := 0; i < ps.p; i++ {
			i := i
			g2.Go(func() error {
				p.lu[i].SolveLU(p.y[ps.start[i]:ps.start[i+1]])
				return nil
			})
		}
		g2.Wait()
	}

	cp := p.reo.colPerm.newToOld
	for i := 0; i < p.n; i++ {
		v := p.y[i]
		if p.reo.scaled {
			v *= p.reo.colScale[cp[i]]
		}
		dst[cp[i]] = v
	}
	return nil
}

// applyTrans overwrites dst with the action of the transposed
// preconditioner inverse on src. It runs the apply pipeline backwards:
// the column side first, transposed block solves, the transposed
// reduced correction, and the row side last. The block cyclic reduction
// path has no transposed solve, so applyTrans requires the dense
// reduced system.
func (p *precond) applyTrans(dst, src []float64) error {
	ps := p.ps
	cp := p.reo.colPerm.newToOld
	for i := 0; i < p.n; i++ {
		v := src[cp[i]]
		if p.reo.scaled {
			v *= p.reo.colScale[cp[i]]
		}
		p.v2[i] = v
	}

	copy(p.y, p.v2)
	var g errgroup.Group
	g.SetLimit(p.opts.workers())
	for i := 0; i < ps.p; i++ {
		i := i
		g.Go(func() error {
			p.lu[i].SolveLUTrans(p.y[ps.start[i]:ps.start[i+1]])
			return nil
		})
	}
	g.Wait()

	if p.red != nil {
		if p.red.lu == nil {
			return factorErr(IllegalSolve, -1, "transposed solve needs the dense reduced system")
		}
		// Transposed coupling gather.
		for j := 0; j+1 < ps.p; j++ {
			k := ps.width[j]
			o := p.red.off[j]
			for c := 0; c < k; c++ {
				var sum float64
				for r := 0; r < k; r++ {
					sum += p.bc[j].C.At(r, c) * p.y[ps.start[j+1]+r]
				}
				p.gred[o+c] = sum
				sum = 0
				base := ps.start[j+1] - k
				for r := 0; r < k; r++ {
					sum += p.bc[j].B.At(r, c) * p.y[base+r]
				}
				p.gred[o+k+c] = sum
			}
		}
		v := mat.NewVecDense(p.red.dim, p.gred)
		if err := p.red.lu.SolveVecTo(v, true, v); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return factorErr(MatrixSingular, -1, "reduced system solve failed")
			}
		}

		// Transposed tip scatter and the final transposed sweep.
		copy(p.rhs, p.v2)
		for j := 0; j+1 < ps.p; j++ {
			k := ps.width[j]
			o := p.red.off[j]
			base := ps.start[j+1] - k
			for r := 0; r < k; r++ {
				p.rhs[base+r] -= p.gred[o+r]
				p.rhs[ps.start[j+1]+r] -= p.gred[o+k+r]
			}
		}
		copy(p.y, p.rhs)
		var g2 errgroup.Group
		g2.SetLimit(p.opts.workers())
		for i := 0; i < ps.p; i++ {
			i := i
			g2.Go(func() error {
				p.lu[i].SolveLUTrans(p.y[ps.start[i]:ps.start[i+1]])
				return nil
			})
		}
		g2.Wait()
	}

	rp := p.reo.rowPerm.newToOld
	for i := 0; i < p.n; i++ {
		v := p.y[i]
		if p.reo.scaled {
			v *= p.reo.rowScale[rp[i]]
		}
		dst[rp[i]] = v
	}
	return nil
}
