// Package plant assembles asset sub-models, connects their ports through
// named buses, and carries the resulting MILP together with the solved
// primal values once a Model has been solved.
package plant

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
)

// Op is a linear constraint's relational operator.
type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// VarKind distinguishes continuous decision variables from the binary
// commitment/gating variables the asset library declares.
type VarKind int

const (
	Continuous VarKind = iota
	Binary
)

// varDecl is one scalar decision variable in the assembled MILP.
type varDecl struct {
	Name string
	Kind VarKind
	LB   float64
	UB   float64
}

// Row is one linear constraint: sum_i coef[i]*x[i] Op RHS.
type Row struct {
	Name string
	Coef map[int]float64
	Op   Op
	RHS  float64
}

// Model is the MILP assembled from a time set, exogenous parameters, asset
// instances, and arcs, in the dependency order set out by spec.md §4.D:
// time set -> exogenous parameters -> instantiate assets -> open ports ->
// register arcs -> composer -> objective.
type Model struct {
	Hours int // N: number of hours in the planning horizon

	vars []varDecl
	rows []Row
	obj  map[int]float64

	buses map[string]*Bus
	arcs  []carrier.Arc

	x      []float64 // solved primal values, indexed like vars; nil until solved
	solved bool
}

// NewModel creates an empty model over an N-hour horizon.
func NewModel(hours int) *Model {
	return &Model{
		Hours: hours,
		obj:   map[int]float64{},
		buses: map[string]*Bus{},
	}
}

// NewVar declares a scalar decision variable and returns its index.
func (m *Model) NewVar(name string, kind VarKind, lb, ub float64) int {
	m.vars = append(m.vars, varDecl{Name: name, Kind: kind, LB: lb, UB: ub})
	return len(m.vars) - 1
}

// NewSeries declares Hours scalar variables named "<name>[t]" for
// t=1..Hours and returns them as a VarSeries, the carrier.Variable
// implementation every asset uses for its ports.
func (m *Model) NewSeries(name string, kind VarKind, lb, ub float64) *VarSeries {
	refs := make([]int, m.Hours+1)
	for t := 1; t <= m.Hours; t++ {
		refs[t] = m.NewVar(fmt.Sprintf("%s[%d]", name, t), kind, lb, ub)
	}
	return &VarSeries{model: m, refs: refs}
}

// AddRow registers a linear constraint.
func (m *Model) AddRow(name string, op Op, rhs float64, coef map[int]float64) {
	m.rows = append(m.rows, Row{Name: name, Coef: coef, Op: op, RHS: rhs})
}

// AddObjective adds coef*x[ref] to the objective (to be minimized).
func (m *Model) AddObjective(ref int, coef float64) {
	m.obj[ref] += coef
}

// NVars and NRows expose the assembled problem size to the solver.
func (m *Model) NVars() int { return len(m.vars) }
func (m *Model) NRows() int { return len(m.rows) }

func (m *Model) VarBounds(i int) (lb, ub float64, kind VarKind) {
	v := m.vars[i]
	return v.LB, v.UB, v.Kind
}

func (m *Model) VarName(i int) string { return m.vars[i].Name }

func (m *Model) Rows() []Row { return m.rows }

func (m *Model) Objective() map[int]float64 { return m.obj }

// SetSolution installs the solver's primal vector; VarSeries.At reads
// through it. Must have length NVars().
func (m *Model) SetSolution(x []float64) {
	m.x = x
	m.solved = true
}

// Value returns the solved primal value for variable index i, or 0 before
// a solution has been installed.
func (m *Model) Value(i int) float64 {
	if !m.solved || i < 0 || i >= len(m.x) {
		return 0
	}
	return m.x[i]
}

// ObjectiveValue evaluates the assembled objective at the current solution.
func (m *Model) ObjectiveValue() float64 {
	var total float64
	for ref, coef := range m.obj {
		total += coef * m.Value(ref)
	}
	return total
}

// VarSeries is a hour-indexed bundle of scalar variables (1-indexed, index
// 0 unused) implementing carrier.Variable by deferring to the owning
// Model's solved primal vector.
type VarSeries struct {
	model *Model
	refs  []int
}

func (vs *VarSeries) At(t int) float64 {
	if vs == nil || t < 0 || t >= len(vs.refs) {
		return 0
	}
	return vs.model.Value(vs.refs[t])
}

func (vs *VarSeries) Len() int { return len(vs.refs) - 1 }

// Ref returns the underlying variable index for hour t, for use when
// building constraints against this series.
func (vs *VarSeries) Ref(t int) int { return vs.refs[t] }

// Fix pins a single hour's variable to an exact value via equality bounds
// collapse (LB=UB=value), used for e.g. the battery's t=1 switch
// auxiliaries or the stratified store's winter-hour Q_Z1_FW pinning.
func (vs *VarSeries) Fix(t int, value float64) {
	i := vs.refs[t]
	vs.model.vars[i].LB = value
	vs.model.vars[i].UB = value
}
