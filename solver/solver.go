package solver

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/plant"
	"github.com/devskill-org/plant-dispatch/validate"
)

// Run solves m end-to-end and, on success, installs the solution onto m via
// SetSolution so every asset's VarSeries.At reads through it. It is the
// single public entrypoint orchestrators (cmd/plant-dispatch) call; Solve/transform/solveLP below it are internal to this package.
func Run(scenario string, m *plant.Model, opts Options) (Result, error) {
	res := Solve(m, opts)
	switch res.Status {
	case Unbounded:
		return res, validate.New(validate.ModelUnbounded, scenario, fmt.Errorf("relaxation unbounded"))
	case Infeasible:
		return res, validate.New(validate.ModelInfeasible, scenario, fmt.Errorf("no feasible integer solution found"))
	case TimeLimitPartial:
		m.SetSolution(res.X)
		return res, validate.New(validate.SolverTimeout, scenario, fmt.Errorf("time limit reached with gap unresolved, best incumbent installed"))
	default:
		m.SetSolution(res.X)
		return res, nil
	}
}
