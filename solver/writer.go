package solver

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/devskill-org/plant-dispatch/plant"
)

var seriesNamePattern = regexp.MustCompile(`^(.*)\[(\d+)\]$`)

// excludedNameFragments are the auxiliary/bookkeeping variables spec.md
// 4.E excludes from the per-hour result frame ("every time-indexed primal
// variable (excluding auxiliaries and arc split-fractions)").
var excludedNameFragments = []string{
	".aux_remainder", ".aux_quotient", ".bin_switch", ".cyclic_switch_bin",
}

func isExcluded(base string) bool {
	for _, frag := range excludedNameFragments {
		if strings.Contains(base, frag) {
			return true
		}
	}
	return false
}

// WriteOutputCSV writes the per-hour dispatch result frame: one row per
// hour, one column per time-indexed model variable (pivoted from the
// "<name>[<t>]" declaration convention plant.Model.NewSeries uses),
// excluding the auxiliary variables above.
func WriteOutputCSV(w io.Writer, m *plant.Model, extraColumns map[string][]float64) error {
	columns := map[string][]float64{} // name -> values indexed 1..Hours
	for i := 0; i < m.NVars(); i++ {
		full := m.VarName(i)
		mm := seriesNamePattern.FindStringSubmatch(full)
		if mm == nil {
			continue
		}
		base, tStr := mm[1], mm[2]
		if isExcluded(base) {
			continue
		}
		t, err := strconv.Atoi(tStr)
		if err != nil || t < 1 || t > m.Hours {
			continue
		}
		col, ok := columns[base]
		if !ok {
			col = make([]float64, m.Hours+1)
			columns[base] = col
		}
		col[t] = m.Value(i)
	}
	for name, vals := range extraColumns {
		col := make([]float64, m.Hours+1)
		copy(col, vals)
		columns[name] = col
	}

	names := make([]string, 0, len(columns))
	for n := range columns {
		names = append(names, n)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	header := append([]string{"t"}, names...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for t := 1; t <= m.Hours; t++ {
		row := make([]string, 0, len(names)+1)
		row = append(row, strconv.Itoa(t))
		for _, n := range names {
			row = append(row, strconv.FormatFloat(columns[n][t], 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CostBreakdown is the spec.md 4.E cost decomposition.
type CostBreakdown struct {
	GasCosts      float64            `json:"gas_costs"`
	CO2CostsPerCHP map[string]float64 `json:"co2_costs_per_chp"`
	PowerCosts    float64            `json:"power_costs"`
	HydrogenCosts float64            `json:"hydrogen_costs"`
	HeatRevenue   float64            `json:"heat_revenue"`
	NetTotal      float64            `json:"net_total"`
	Objective     float64            `json:"objective"`
	Discrepancy   float64            `json:"discrepancy"`
	DiscrepancyWarning bool          `json:"discrepancy_warning,omitempty"`
}

// WriteCostsJSON writes the cost decomposition JSON.
func WriteCostsJSON(w io.Writer, breakdown CostBreakdown) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(breakdown)
}

// RunMetadata is the spec.md 4.E run-metadata JSON: solver options and
// headline parameters.
type RunMetadata struct {
	Scenario           string            `json:"scenario"`
	Timestamp          string            `json:"timestamp"`
	SolverName         string            `json:"solver_name"`
	MIPGap             float64           `json:"mip_gap"`
	TimeLimitSeconds   float64           `json:"time_limit_seconds"`
	Status             string            `json:"status"`
	NodesExplored      int               `json:"nodes_explored"`
	HydrogenAdmixture  map[string]float64 `json:"hydrogen_admixture_per_chp"`
	ScalarPrices        map[string]float64 `json:"scalar_prices"`
}

func WriteMetadataJSON(w io.Writer, md RunMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(md)
}

// WriteSolverLog writes the raw solver log (spec.md 6's
// "<S>_<TS>_solver.log").
func WriteSolverLog(w io.Writer, result Result, messages []string) error {
	fmt.Fprintf(w, "status: %s\n", result.Status)
	fmt.Fprintf(w, "objective: %v\n", result.Objective)
	fmt.Fprintf(w, "nodes_explored: %d\n", result.NodesExplored)
	fmt.Fprintf(w, "best_bound: %v\n", result.BestBound)
	for _, msg := range messages {
		fmt.Fprintln(w, msg)
	}
	return nil
}
