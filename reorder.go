// Copyright ©2025 The SaPLibrary Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sap

import (
	"container/heap"
	"math"
	"sort"

	"github.com/Milad-Rakhsha/SaPLibrary/sparse"
)

// permutation is a bijection on [0, n) with its inverse cached.
type permutation struct {
	newToOld []int
	oldToNew []int
}

func newPermutation(newToOld []int) *permutation {
	inv := make([]int, len(newToOld))
	for i := range inv {
		inv[i] = -1
	}
	for i, p := range newToOld {
		if p < 0 || len(newToOld) <= p || inv[p] != -1 {
			panic("sap: not a permutation")
		}
		inv[p] = i
	}
	return &permutation{newToOld: newToOld, oldToNew: inv}
}

func identityPermutation(n int) *permutation {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return newPermutation(p)
}

// reorderResult carries the combined outcome of the diagonal boosting
// and bandwidth reduction passes.
type reorderResult struct {
	rowPerm *permutation
	colPerm *permutation
	// rowScale and colScale are indexed by original row and column.
	// They are nil when scaling was not applied.
	rowScale []float64
	colScale []float64
	scaled   bool

	bandwidthBefore int
	bandwidthAfter  int

	// pm is the permuted and scaled matrix owned by the
	// preconditioner.
	pm *sparse.Matrix
}

// reorder runs the diagonal boosting matching and the bandwidth
// reducing reordering according to opts and returns the transformed
// matrix together with the permutations and scale factors that produced
// it. A structurally singular matching is not an error here; the pass
// falls back to the natural column order without scaling.
func reorder(m *sparse.Matrix, opts *Options) (*reorderResult, error) {
	n, _ := m.Dims()
	res := &reorderResult{
		rowPerm: identityPermutation(n),
		colPerm: identityPermutation(n),
	}
	kl, ku := m.Bandwidth()
	res.bandwidthBefore = max(kl, ku)

	// Diagonal boosting: permute a large entry onto every diagonal
	// position and derive scale factors bringing those entries to unit
	// magnitude.
	dbNewToOld := res.colPerm.newToOld
	if opts.PerformDB && !opts.IsSPD {
		match, rs, cs, ok, err := dbMatch(m)
		if err != nil {
			return nil, err
		}
		if ok {
			dbNewToOld = match
			if opts.ApplyScaling {
				res.rowScale = rs
				res.colScale = cs
				res.scaled = true
			}
		}
	}
	dbPerm := newPermutation(dbNewToOld)
	b := sparse.PermuteScale(m, nil, dbPerm.oldToNew, res.rowScale, res.colScale)

	if opts.PerformReorder {
		q := newPermutation(rcm(b))
		res.rowPerm = q
		colNewToOld := make([]int, n)
		for i := range colNewToOld {
			colNewToOld[i] = dbPerm.newToOld[q.newToOld[i]]
		}
		res.colPerm = newPermutation(colNewToOld)
		res.pm = sparse.PermuteScale(b, q.newToOld, q.oldToNew, nil, nil)
	} else {
		res.colPerm = dbPerm
		res.pm = b
	}

	kl, ku = res.pm.Bandwidth()
	res.bandwidthAfter = max(kl, ku)
	return res, nil
}

// negWeightTol absorbs round-off in the matching weights, which are
// non-negative in exact arithmetic.
const negWeightTol = 1e-12

// dbMatch solves the weighted bipartite matching underlying the DB
// scaling: it selects one column per row maximizing the product of the
// matched magnitudes, by minimizing the weights
//
//	c(i, j) = log(max|row i|) - log|a_ij| ≥ 0
//
// with a sparse shortest augmenting path method. The dual variables of
// the optimal matching yield strictly positive row and column scale
// factors under which every matched entry has unit magnitude and no
// entry exceeds it.
//
// ok is false when the matrix is structurally singular, in which case
// no perfect matching exists.
func dbMatch(m *sparse.Matrix) (match []int, rowScale, colScale []float64, ok bool, err error) {
	n, _ := m.Dims()

	// Per-entry weights, in CSR order.
	logMax := make([]float64, n)
	weight := make([][]float64, n)
	for i := 0; i < n; i++ {
		_, vals := m.Row(i)
		wmax := 0.0
		for _, v := range vals {
			if a := math.Abs(v); a > wmax {
				wmax = a
			}
		}
		if wmax == 0 {
			return nil, nil, nil, false, nil
		}
		logMax[i] = math.Log(wmax)
		w := make([]float64, len(vals))
		for k, v := range vals {
			if v == 0 {
				w[k] = math.Inf(1)
				continue
			}
			c := logMax[i] - math.Log(math.Abs(v))
			if c < 0 {
				if c < -negWeightTol {
					return nil, nil, nil, false, factorErr(NegativeDBWeight, -1, "matching weight below zero")
				}
				c = 0
			}
			w[k] = c
		}
		weight[i] = w
	}

	u := make([]float64, n)
	v := make([]float64, n)
	matchCol := make([]int, n) // row -> column
	matchRow := make([]int, n) // column -> row
	for i := range matchCol {
		matchCol[i] = -1
		matchRow[i] = -1
	}

	dist := make([]float64, n)
	shortest := make([]float64, n)
	visited := make([]bool, n)
	prev := make([]int, n)

	for i0 := 0; i0 < n; i0++ {
		for j := range dist {
			dist[j] = math.Inf(1)
			visited[j] = false
			prev[j] = -1
		}
		var pq colQueue
		relax := func(i int, base float64) {
			cols, _ := m.Row(i)
			for k, j := range cols {
				if visited[j] || math.IsInf(weight[i][k], 1) {
					continue
				}
				nd := base + weight[i][k] - u[i] - v[j]
				if nd < dist[j] {
					dist[j] = nd
					prev[j] = i
					heap.Push(&pq, colDist{col: j, dist: nd})
				}
			}
		}
		relax(i0, 0)

		found := -1
		for found == -1 {
			var j int
			for {
				if pq.Len() == 0 {
					// No augmenting path: structurally singular.
					return nil, nil, nil, false, nil
				}
				item := heap.Pop(&pq).(colDist)
				j = item.col
				if !visited[j] && item.dist == dist[j] {
					break
				}
			}
			visited[j] = true
			shortest[j] = dist[j]
			if matchRow[j] == -1 {
				found = j
				break
			}
			relax(matchRow[j], dist[j])
		}

		// Dual update keeping matched and path edges tight.
		d := shortest[found]
		u[i0] += d
		for j := 0; j < n; j++ {
			if !visited[j] || j == found {
				continue
			}
			v[j] += shortest[j] - d
			if r := matchRow[j]; r >= 0 {
				u[r] += d - shortest[j]
			}
		}

		// Augment along the alternating path.
		for j := found; ; {
			i := prev[j]
			matchRow[j] = i
			j, matchCol[i] = matchCol[i], j
			if i == i0 {
				break
			}
		}
	}

	rowScale = make([]float64, n)
	colScale = make([]float64, n)
	for i := 0; i < n; i++ {
		rowScale[i] = math.Exp(u[i] - logMax[i])
		colScale[i] = math.Exp(v[i])
	}
	return matchCol, rowScale, colScale, true, nil
}

type colDist struct {
	col  int
	dist float64
}

type colQueue []colDist

func (q colQueue) Len() int            { return len(q) }
func (q colQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q colQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *colQueue) Push(x interface{}) { *q = append(*q, x.(colDist)) }
func (q *colQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// rcm computes a reverse Cuthill-McKee ordering of the symmetrized
// pattern of m, returning the new-to-old permutation. Disconnected
// components are ordered one after another.
func rcm(m *sparse.Matrix) []int {
	n, _ := m.Dims()
	adj := make([][]int, n)
	for i := 0; i < n; i++ {
		cols, _ := m.Row(i)
		for _, j := range cols {
			if j == i {
				continue
			}
			adj[i] = append(adj[i], j)
			adj[j] = append(adj[j], i)
		}
	}
	for i := range adj {
		sort.Ints(adj[i])
		adj[i] = compact(adj[i])
	}

	order := make([]int, 0, n)
	visited := make([]bool, n)
	for seed := 0; seed < n; seed++ {
		if visited[seed] {
			continue
		}
		start := pseudoPeripheral(adj, seed)
		order = cuthillMcKee(adj, start, visited, order)
	}
	// Reverse for RCM.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func compact(s []int) []int {
	if len(s) == 0 {
		return s
	}
	k := 1
	for i := 1; i < len(s); i++ {
		if s[i] != s[k-1] {
			s[k] = s[i]
			k++
		}
	}
	return s[:k]
}

// cuthillMcKee appends the breadth-first ordering of start's component
// to order, visiting neighbors by increasing degree.
func cuthillMcKee(adj [][]int, start int, visited []bool, order []int) []int {
	visited[start] = true
	order = append(order, start)
	for head := len(order) - 1; head < len(order); head++ {
		u := order[head]
		begin := len(order)
		for _, w := range adj[u] {
			if !visited[w] {
				visited[w] = true
				order = append(order, w)
			}
		}
		frontier := order[begin:]
		sort.Slice(frontier, func(a, b int) bool {
			return len(adj[frontier[a]]) < len(adj[frontier[b]])
		})
	}
	return order
}

// pseudoPeripheral locates a vertex of near-maximal eccentricity in
// seed's component by repeated breadth-first sweeps.
func pseudoPeripheral(adj [][]int, seed int) int {
	start := seed
	ecc := -1
	for {
		levels, last := bfsLevels(adj, start)
		if levels <= ecc {
			return start
		}
		ecc = levels
		// Continue from a minimum degree vertex of the last level.
		next := last[0]
		for _, u := range last {
			if len(adj[u]) < len(adj[next]) {
				next = u
			}
		}
		start = next
	}
}

func bfsLevels(adj [][]int, start int) (depth int, last []int) {
	visited := map[int]bool{start: true}
	level := []int{start}
	for {
		var next []int
		for _, u := range level {
			for _, w := range adj[u] {
				if !visited[w] {
					visited[w] = true
					next = append(next, w)
				}
			}
		}
		if len(next) == 0 {
			return depth, level
		}
		depth++
		level = next
	}
}
