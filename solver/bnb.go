package solver

import (
	"math"
	"time"

	"github.com/devskill-org/plant-dispatch/plant"
)

// Status reports how the solve terminated, per spec.md 7's error kinds.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	TimeLimitPartial
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case TimeLimitPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Options configures a single solve (spec.md 4.E: "a solver name, a time
// limit, and a MIP gap").
type Options struct {
	Name      string // informational only; there is exactly one backend
	TimeLimit time.Duration
	MIPGap    float64 // relative gap at which branch-and-bound may stop early
	NodeLimit int     // backstop against runaway search; 0 = default
}

// DefaultOptions mirrors a conservative, always-terminating configuration.
func DefaultOptions() Options {
	return Options{Name: "plant-dispatch-bnb", TimeLimit: 5 * time.Minute, MIPGap: 1e-4, NodeLimit: 200000}
}

// Result is what the driver hands to the output writer.
type Result struct {
	Status        Status
	Objective     float64
	X             []float64
	NodesExplored int
	BestBound     float64
}

type node struct {
	overrides map[int][2]float64
}

// binaryVars returns the indices of every Binary-kind model variable.
func binaryVars(m *plant.Model) []int {
	var out []int
	for i := 0; i < m.NVars(); i++ {
		_, _, kind := m.VarBounds(i)
		if kind == plant.Binary {
			out = append(out, i)
		}
	}
	return out
}

// Solve runs branch-and-bound over m's binary commitment/gating variables,
// re-solving the LP relaxation at every node via the from-scratch simplex
// in simplex.go. It returns the best incumbent found within the time and
// node limits.
func Solve(m *plant.Model, opts Options) Result {
	if opts.TimeLimit <= 0 {
		opts = DefaultOptions()
	}
	deadline := time.Now().Add(opts.TimeLimit)
	bins := binaryVars(m)

	best := Result{Status: Infeasible, Objective: math.Inf(1)}
	haveIncumbent := false

	stack := []node{{overrides: map[int][2]float64{}}}
	nodes := 0
	nodeLimit := opts.NodeLimit
	if nodeLimit <= 0 {
		nodeLimit = 200000
	}

	rootBound := math.Inf(-1)

	for len(stack) > 0 {
		if nodes >= nodeLimit || time.Now().After(deadline) {
			if haveIncumbent {
				best.Status = TimeLimitPartial
			}
			return best
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		std, err := transform(m, n.overrides)
		if err != nil {
			continue
		}
		y, obj, status := solveLP(std)
		if status == lpInfeasible {
			continue
		}
		if status == lpUnbounded {
			return Result{Status: Unbounded, NodesExplored: nodes}
		}
		if nodes == 1 {
			rootBound = obj
		}
		if haveIncumbent && obj >= best.Objective-1e-9 {
			continue // bound prune: this relaxation cannot beat the incumbent
		}

		x := std.reconstruct(y)
		fracVar, fracVal := mostFractional(x, bins, n.overrides)
		if fracVar == -1 {
			// Integer-feasible: update incumbent.
			best = Result{Status: Optimal, Objective: obj, X: x, NodesExplored: nodes, BestBound: rootBound}
			haveIncumbent = true
			if gapSatisfied(rootBound, obj, opts.MIPGap) {
				return best
			}
			continue
		}

		lo := cloneOverrides(n.overrides)
		lo[fracVar] = [2]float64{0, 0}
		hi := cloneOverrides(n.overrides)
		hi[fracVar] = [2]float64{1, 1}
		_ = fracVal
		// Explore the "round up" branch first: commitment-gated assets
		// are more often profitable running than idle, so this tends to
		// find a good incumbent sooner.
		stack = append(stack, node{overrides: lo}, node{overrides: hi})
	}

	if !haveIncumbent {
		best.Status = Infeasible
	}
	best.NodesExplored = nodes
	return best
}

func cloneOverrides(m map[int][2]float64) map[int][2]float64 {
	out := make(map[int][2]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mostFractional returns the free (unfixed) binary variable whose LP-
// relaxed value is furthest from {0,1}, or -1 if every binary is already
// integral within tolerance.
func mostFractional(x []float64, bins []int, overrides map[int][2]float64) (int, float64) {
	best := -1
	bestDist := 1e-6
	for _, b := range bins {
		if _, fixed := overrides[b]; fixed {
			continue
		}
		v := x[b]
		dist := math.Min(v, 1-v)
		if dist > bestDist {
			bestDist = dist
			best = b
		}
	}
	return best, bestDist
}

func gapSatisfied(bound, incumbent, gap float64) bool {
	if gap <= 0 {
		return false
	}
	denom := math.Abs(incumbent)
	if denom < 1e-9 {
		denom = 1
	}
	return math.Abs(incumbent-bound)/denom <= gap
}
