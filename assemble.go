// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"math"

	"github.com/Milad-Rakhsha/SaPLibrary/internal/band"
	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
	"gonum.org/v1/gonum/mat"
)

// coupling holds the dense off-diagonal blocks at one interface.
// B couples the bottom rows of the left partition to the top columns of
// the right one, C the other way around. Both are width×width.
type coupling struct {
	B *mat.Dense
	C *mat.Dense
}

// extractCoupling collects the coupling blocks at every interface. By
// the bandedness of m every coupling entry falls inside the width×width
// corner blocks; anything farther out was already beyond the selected
// bandwidth and is dropped with the rest of the exterior.
func extractCoupling(m *sparse.Matrix, ps *partitionSet) []coupling {
	bc := make([]coupling, ps.p-1)
	for j := range bc {
		k := ps.width[j]
		bc[j].B = mat.NewDense(k, k, nil)
		bc[j].C = mat.NewDense(k, k, nil)
	}
	for r := 0; r < ps.n; r++ {
		i := ps.owner(r)
		cols, vals := m.Row(r)
		for t, c := range cols {
			switch o := ps.owner(c); {
			case o == i+1:
				k := ps.width[i]
				rr := r - (ps.start[i+1] - k)
				cc := c - ps.start[i+1]
				if rr >= 0 && cc < k {
					bc[i].B.Set(rr, cc, vals[t])
				}
			case o == i-1:
				k := ps.width[i-1]
				rr := r - ps.start[i]
				cc := c - (ps.start[i] - k)
				if rr < k && cc >= 0 {
					bc[i-1].C.Set(rr, cc, vals[t])
				}
			}
		}
	}
	return bc
}

// interfaceTips holds the top and bottom blocks of the spikes meeting
// at one interface. With widths k = width[j], kl = width[j-1] and
// kr = width[j+1]:
//
//	Vb  k×k    bottom of the right spike of partition j
//	Wt  k×k    top of the left spike of partition j+1
//	Wb  k×kl   bottom of the left spike of partition j, nil when j = 0
//	Vt  k×kr   top of the right spike of partition j+1, nil at the end
type interfaceTips struct {
	Vb, Wt *mat.Dense
	Wb, Vt *mat.Dense
}

// computeTips solves for the spike blocks of partition i and scatters
// their tips into the interface slots. The right spike is obtained from
// the LU factors. The left spike uses the UL factors when present,
// which resolves its top block without forming the full spike;
// otherwise it falls back to the same LU factors.
func computeTips(i int, ps *partitionSet, lu, ul *band.Matrix, bc []coupling, tips []interfaceTips) {
	sz := ps.size(i)
	rhs := make([]float64, sz)

	if i < ps.p-1 {
		k := ps.width[i]
		for c := 0; c < k; c++ {
			for r := range rhs {
				rhs[r] = 0
			}
			for r := 0; r < k; r++ {
				rhs[sz-k+r] = bc[i].B.At(r, c)
			}
			lu.SolveLU(rhs)
			for r := 0; r < k; r++ {
				tips[i].Vb.Set(r, c, rhs[sz-k+r])
			}
			if i > 0 {
				kl := ps.width[i-1]
				for r := 0; r < kl; r++ {
					tips[i-1].Vt.Set(r, c, rhs[r])
				}
			}
		}
	}

	if i > 0 {
		kl := ps.width[i-1]
		for c := 0; c < kl; c++ {
			for r := range rhs {
				rhs[r] = 0
			}
			for r := 0; r < kl; r++ {
				rhs[r] = bc[i-1].C.At(r, c)
			}
			if ul != nil {
				ul.SolveUL(rhs)
			} else {
				lu.SolveLU(rhs)
			}
			for r := 0; r < kl; r++ {
				tips[i-1].Wt.Set(r, c, rhs[r])
			}
			if i < ps.p-1 {
				k := ps.width[i]
				for r := 0; r < k; r++ {
					tips[i].Wb.Set(r, c, rhs[sz-k+r])
				}
			}
		}
	}
}

func newInterfaceTips(ps *partitionSet) []interfaceTips {
	tips := make([]interfaceTips, ps.p-1)
	for j := range tips {
		k := ps.width[j]
		tips[j].Vb = mat.NewDense(k, k, nil)
		tips[j].Wt = mat.NewDense(k, k, nil)
		if j > 0 {
			tips[j].Wb = mat.NewDense(k, ps.width[j-1], nil)
		}
		if j < ps.p-2 {
			tips[j].Vt = mat.NewDense(k, ps.width[j+1], nil)
		}
	}
	return tips
}

// reducedSystem is the coupling system on the interface unknowns. For
// every interface j its unknown block is [x_j^bottom; x_{j+1}^top],
// each of length width[j], and the system reads
//
//	x_j^b     + Wb_j·x_{j-1}^b + Vb_j·x_{j+1}^t     = g_j^b
//	x_{j+1}^t + Wt_{j+1}·x_j^b + Vt_{j+1}·x_{j+2}^t = g_{j+1}^t
//
// which is block tridiagonal in the interface blocks. The default path
// factors the whole system densely; the alternative reduces it by block
// cyclic reduction.
type reducedSystem struct {
	ps  *partitionSet
	off []int // offset of interface j in the reduced vector
	dim int

	lu  *mat.LU
	bcr *bcrSolver
}

func newReducedSystem(ps *partitionSet, tips []interfaceTips, useBCR bool) (*reducedSystem, error) {
	rs := &reducedSystem{
		ps:  ps,
		off: make([]int, ps.p-1),
	}
	for j := range rs.off {
		rs.off[j] = rs.dim
		rs.dim += 2 * ps.width[j]
	}

	if useBCR {
		b, err := newBCRSolver(ps, tips)
		if err != nil {
			return nil, err
		}
		rs.bcr = b
		return rs, nil
	}

	s := mat.NewDense(rs.dim, rs.dim, nil)
	for j := 0; j+1 < ps.p; j++ {
		k := ps.width[j]
		o := rs.off[j]
		for i := 0; i < 2*k; i++ {
			s.Set(o+i, o+i, 1)
		}
		s.Slice(o, o+k, o+k, o+2*k).(*mat.Dense).Copy(tips[j].Vb)
		s.Slice(o+k, o+2*k, o, o+k).(*mat.Dense).Copy(tips[j].Wt)
		if j > 0 {
			kl := ps.width[j-1]
			s.Slice(o, o+k, rs.off[j-1], rs.off[j-1]+kl).(*mat.Dense).Copy(tips[j].Wb)
		}
		if j+2 < ps.p {
			kr := ps.width[j+1]
			or := rs.off[j+1] + kr
			s.Slice(o+k, o+2*k, or, or+kr).(*mat.Dense).Copy(tips[j].Vt)
		}
	}
	var lu mat.LU
	lu.Factorize(s)
	if det, sign := lu.LogDet(); sign == 0 || math.IsInf(det, -1) {
		return nil, factorErr(MatrixSingular, -1, "reduced system is singular")
	}
	rs.lu = &lu
	return rs, nil
}

// solve overwrites g, laid out interface by interface, with the
// solution of the reduced system.
func (rs *reducedSystem) solve(g []float64) error {
	if rs.bcr != nil {
		return rs.bcr.solve(g, rs.off)
	}
	v := mat.NewVecDense(rs.dim, g)
	err := rs.lu.SolveVecTo(v, false, v)
	if _, ok := err.(mat.Condition); err != nil && !ok {
		return factorErr(MatrixSingular, -1, "reduced system solve failed")
	}
	return nil
}

// bcrSolver eliminates the block tridiagonal reduced system by cyclic
// reduction, halving the number of interface blocks per stage. The
// elimination of block j folds D_j^{-1} into its even neighbors:
//
//	D_{j-1} ← D_{j-1} − U_{j-1} D_j^{-1} L_j    U_{j-1} ← −U_{j-1} D_j^{-1} U_j
//	D_{j+1} ← D_{j+1} − L_{j+1} D_j^{-1} U_j    L_{j+1} ← −L_{j+1} D_j^{-1} L_j
//
// The factors and the pre-elimination couplings are kept per stage so
// that the solve can replay the reduction on a right-hand side.
type bcrSolver struct {
	k      []int
	stages [][]bcrElim
	root   int
	rootLU *mat.LU
}

type bcrElim struct {
	j, jl, jr int // jr < 0 at the right edge

	lu            *mat.LU
	ljj, ujj      *mat.Dense // couplings of block j at elimination
	uleft, lright *mat.Dense // couplings of the neighbors into j
}

func newBCRSolver(ps *partitionSet, tips []interfaceTips) (*bcrSolver, error) {
	m := ps.p - 1
	bs := &bcrSolver{k: append([]int(nil), ps.width...)}

	// Assemble the block tridiagonal form of the reduced system.
	d := make([]*mat.Dense, m)
	l := make([]*mat.Dense, m)
	u := make([]*mat.Dense, m)
	for j := 0; j < m; j++ {
		k := bs.k[j]
		d[j] = mat.NewDense(2*k, 2*k, nil)
		for i := 0; i < 2*k; i++ {
			d[j].Set(i, i, 1)
		}
		d[j].Slice(0, k, k, 2*k).(*mat.Dense).Copy(tips[j].Vb)
		d[j].Slice(k, 2*k, 0, k).(*mat.Dense).Copy(tips[j].Wt)
		if j > 0 {
			kl := bs.k[j-1]
			l[j] = mat.NewDense(2*k, 2*kl, nil)
			l[j].Slice(0, k, 0, kl).(*mat.Dense).Copy(tips[j].Wb)
		}
		if j+1 < m {
			kr := bs.k[j+1]
			u[j] = mat.NewDense(2*k, 2*kr, nil)
			u[j].Slice(k, 2*k, kr, 2*kr).(*mat.Dense).Copy(tips[j].Vt)
		}
	}

	factor := func(a *mat.Dense) (*mat.LU, error) {
		var lu mat.LU
		lu.Factorize(a)
		if det, sign := lu.LogDet(); sign == 0 || math.IsInf(det, -1) {
			return nil, factorErr(MatrixSingular, -1, "reduced system is singular")
		}
		return &lu, nil
	}

	active := make([]int, m)
	for j := range active {
		active[j] = j
	}
	for len(active) > 1 {
		var stage []bcrElim
		var next []int
		for t := 0; t < len(active); t++ {
			if t%2 == 0 {
				next = append(next, active[t])
				continue
			}
			j := active[t]
			jl := active[t-1]
			jr := -1
			if t+1 < len(active) {
				jr = active[t+1]
			}
			lu, err := factor(d[j])
			if err != nil {
				return nil, err
			}
			el := bcrElim{
				j: j, jl: jl, jr: jr,
				lu:    lu,
				ljj:   l[j],
				ujj:   u[j],
				uleft: u[jl],
			}
			// D^{-1}L and D^{-1}U of the eliminated block.
			var e, f *mat.Dense
			if l[j] != nil {
				e = mat.NewDense(l[j].RawMatrix().Rows, l[j].RawMatrix().Cols, nil)
				if err := lu.SolveTo(e, false, l[j]); err != nil {
					if _, ok := err.(mat.Condition); !ok {
						return nil, factorErr(MatrixSingular, -1, "reduced system is singular")
					}
				}
			}
			if u[j] != nil {
				f = mat.NewDense(u[j].RawMatrix().Rows, u[j].RawMatrix().Cols, nil)
				if err := lu.SolveTo(f, false, u[j]); err != nil {
					if _, ok := err.(mat.Condition); !ok {
						return nil, factorErr(MatrixSingular, -1, "reduced system is singular")
					}
				}
			}
			// Fold into the left neighbor.
			if u[jl] != nil && e != nil {
				var t1 mat.Dense
				t1.Mul(u[jl], e)
				d[jl].Sub(d[jl], &t1)
			}
			if u[jl] != nil && f != nil {
				nu := &mat.Dense{}
				nu.Mul(u[jl], f)
				nu.Scale(-1, nu)
				u[jl] = nu
			} else {
				u[jl] = nil
			}
			// Fold into the right neighbor.
			if jr >= 0 {
				el.lright = l[jr]
				if l[jr] != nil && f != nil {
					var t2 mat.Dense
					t2.Mul(l[jr], f)
					d[jr].Sub(d[jr], &t2)
				}
				if l[jr] != nil && e != nil {
					nl := &mat.Dense{}
					nl.Mul(l[jr], e)
					nl.Scale(-1, nl)
					l[jr] = nl
				} else {
					l[jr] = nil
				}
			}
			stage = append(stage, el)
		}
		bs.stages = append(bs.stages, stage)
		active = next
	}

	bs.root = active[0]
	lu, err := factor(d[bs.root])
	if err != nil {
		return nil, err
	}
	bs.rootLU = lu
	return bs, nil
}

// solve runs the forward reduction and back substitution sweeps on the
// reduced right-hand side g, overwriting it with the solution. off maps
// interface j to its offset in g.
func (bs *bcrSolver) solve(g []float64, off []int) error {
	blk := func(j int) *mat.VecDense {
		return mat.NewVecDense(2*bs.k[j], g[off[j]:off[j]+2*bs.k[j]])
	}

	for _, stage := range bs.stages {
		for _, el := range stage {
			hj := mat.NewVecDense(2*bs.k[el.j], nil)
			if err := el.lu.SolveVecTo(hj, false, blk(el.j)); err != nil {
				if _, ok := err.(mat.Condition); !ok {
					return factorErr(MatrixSingular, -1, "reduced system solve failed")
				}
			}
			if el.uleft != nil {
				var t mat.VecDense
				t.MulVec(el.uleft, hj)
				gl := blk(el.jl)
				gl.SubVec(gl, &t)
			}
			if el.jr >= 0 && el.lright != nil {
				var t mat.VecDense
				t.MulVec(el.lright, hj)
				gr := blk(el.jr)
				gr.SubVec(gr, &t)
			}
		}
	}

	root := blk(bs.root)
	if err := bs.rootLU.SolveVecTo(root, false, root); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			return factorErr(MatrixSingular, -1, "reduced system solve failed")
		}
	}

	for s := len(bs.stages) - 1; s >= 0; s-- {
		stage := bs.stages[s]
		for t := len(stage) - 1; t >= 0; t-- {
			el := stage[t]
			rhs := blk(el.j)
			if el.ljj != nil {
				var tv mat.VecDense
				tv.MulVec(el.ljj, blk(el.jl))
				rhs.SubVec(rhs, &tv)
			}
			if el.jr >= 0 && el.ujj != nil {
				var tv mat.VecDense
				tv.MulVec(el.ujj, blk(el.jr))
				rhs.SubVec(rhs, &tv)
			}
			if err := el.lu.SolveVecTo(rhs, false, rhs); err != nil {
				if _, ok := err.(mat.Condition); !ok {
					return factorErr(MatrixSingular, -1, "reduced system solve failed")
				}
			}
		}
	}
	return nil
}
