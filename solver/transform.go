// Package solver is the MILP solver driver (spec.md 4.E): a from-scratch
// primal simplex over a dense tableau plus branch-and-bound on the binary
// commitment/gating variables declared by the asset library. No MILP/LP
// solver library exists anywhere in the retrieved example pack (no HiGHS,
// CBC, GLPK, Gurobi, or OR-Tools binding, no pure-Go simplex package), so
// this package is written against the standard library only — see
// DESIGN.md for the grounding of that decision.
package solver

import (
	"fmt"
	"math"

	"github.com/devskill-org/plant-dispatch/plant"
)

const infBound = math.MaxFloat64 / 4

// colKind tags how an original model variable maps onto one or two
// standard-form (nonnegative) columns.
type colKind int

const (
	shifted colKind = iota // x = lb + y,  y in [0, ub-lb] or [0, inf)
	flipped                 // x = ub - y,  y in [0, inf), used when lb = -inf, ub finite
	split                   // x = yPos - yNeg, both in [0, inf), used when both bounds infinite
)

type varMap struct {
	kind   colKind
	lb, ub float64
	col    int // standard-form column (shifted/flipped) or yPos column (split)
	col2   int // yNeg column (split only)
}

// std is the standard-form linear program derived from a plant.Model:
// minimize c^T y subject to A y = b, y >= 0.
type std struct {
	nCols     int
	rows      [][]float64 // dense, len(rows) x nCols
	rhs       []float64
	cost      []float64 // phase-2 cost (original objective, y-space)
	basis     []int     // current basic variable per row
	artCols   map[int]bool
	maps      []varMap // indexed by original model variable index
	nOrigCols int      // number of non-slack/surplus/artificial columns
}

// buildBounds resolves the effective (lb, ub) for model variable i, honoring
// a branch-and-bound node's overrides.
func buildBounds(m *plant.Model, i int, overrides map[int][2]float64) (float64, float64) {
	if ov, ok := overrides[i]; ok {
		return ov[0], ov[1]
	}
	lb, ub, _ := m.VarBounds(i)
	if ub == math.Inf(1) {
		ub = infBound
	}
	if lb == math.Inf(-1) {
		lb = -infBound
	}
	return lb, ub
}

// transform builds the standard form for m under the given branch-and-bound
// variable bound overrides (keyed by original model variable index).
func transform(m *plant.Model, overrides map[int][2]float64) (*std, error) {
	n := m.NVars()
	maps := make([]varMap, n)
	nCols := 0
	var boundRows []struct {
		col int
		ub  float64
	}

	for i := 0; i < n; i++ {
		lb, ub := buildBounds(m, i, overrides)
		switch {
		case lb > -infBound && ub < infBound:
			maps[i] = varMap{kind: shifted, lb: lb, ub: ub, col: nCols}
			boundRows = append(boundRows, struct {
				col int
				ub  float64
			}{nCols, ub - lb})
			nCols++
		case lb > -infBound:
			maps[i] = varMap{kind: shifted, lb: lb, ub: ub, col: nCols}
			nCols++
		case ub < infBound:
			maps[i] = varMap{kind: flipped, lb: lb, ub: ub, col: nCols}
			nCols++
		default:
			maps[i] = varMap{kind: split, lb: lb, ub: ub, col: nCols, col2: nCols + 1}
			nCols += 2
		}
	}
	nOrigCols := nCols

	type rowSpec struct {
		coef map[int]float64 // column -> coef, in y-space
		op   plant.Op
		rhs  float64
	}
	var specs []rowSpec

	toYSpace := func(coefByVar map[int]float64) (map[int]float64, float64) {
		y := map[int]float64{}
		var constAdj float64
		for ref, c := range coefByVar {
			vm := maps[ref]
			switch vm.kind {
			case shifted:
				y[vm.col] += c
				constAdj += c * vm.lb
			case flipped:
				y[vm.col] += -c
				constAdj += c * vm.ub
			case split:
				y[vm.col] += c
				y[vm.col2] += -c
			}
		}
		return y, constAdj
	}

	for _, row := range m.Rows() {
		y, constAdj := toYSpace(row.Coef)
		specs = append(specs, rowSpec{coef: y, op: row.Op, rhs: row.RHS - constAdj})
	}
	for _, br := range boundRows {
		specs = append(specs, rowSpec{coef: map[int]float64{br.col: 1}, op: plant.LE, rhs: br.ub})
	}

	// Count extra columns needed (slack/surplus/artificial) before
	// allocating the dense matrix.
	extra := 0
	for i := range specs {
		s := &specs[i]
		if s.rhs < 0 {
			for c := range s.coef {
				s.coef[c] = -s.coef[c]
			}
			s.rhs = -s.rhs
			switch s.op {
			case plant.LE:
				s.op = plant.GE
			case plant.GE:
				s.op = plant.LE
			}
		}
		switch s.op {
		case plant.LE:
			extra++ // slack
		case plant.GE:
			extra += 2 // surplus + artificial
		case plant.EQ:
			extra++ // artificial
		}
	}

	totalCols := nCols + extra
	s := &std{
		nCols:     totalCols,
		nOrigCols: nOrigCols,
		maps:      maps,
		artCols:   map[int]bool{},
		basis:     make([]int, len(specs)),
	}

	col := nCols
	for r, spec := range specs {
		row := make([]float64, totalCols)
		for c, v := range spec.coef {
			row[c] = v
		}
		switch spec.op {
		case plant.LE:
			row[col] = 1
			s.basis[r] = col
			col++
		case plant.GE:
			row[col] = -1   // surplus
			row[col+1] = 1  // artificial
			s.artCols[col+1] = true
			s.basis[r] = col + 1
			col += 2
		case plant.EQ:
			row[col] = 1 // artificial
			s.artCols[col] = true
			s.basis[r] = col
			col++
		default:
			return nil, fmt.Errorf("solver: unknown op %v", spec.op)
		}
		s.rows = append(s.rows, row)
		s.rhs = append(s.rhs, spec.rhs)
	}

	cost := make([]float64, totalCols)
	for ref, c := range m.Objective() {
		vm := maps[ref]
		switch vm.kind {
		case shifted:
			cost[vm.col] += c
		case flipped:
			cost[vm.col] += -c
		case split:
			cost[vm.col] += c
			cost[vm.col2] += -c
		}
	}
	s.cost = cost

	return s, nil
}

// reconstruct maps a standard-form solution y back onto the original model
// variable indices.
func (s *std) reconstruct(y []float64) []float64 {
	x := make([]float64, len(s.maps))
	for i, vm := range s.maps {
		switch vm.kind {
		case shifted:
			x[i] = vm.lb + y[vm.col]
		case flipped:
			x[i] = vm.ub - y[vm.col]
		case split:
			x[i] = y[vm.col] - y[vm.col2]
		}
	}
	return x
}
