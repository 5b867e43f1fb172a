package assemble_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/plant-dispatch/assemble"
	"github.com/devskill-org/plant-dispatch/config"
	"github.com/devskill-org/plant-dispatch/solver"
	"github.com/devskill-org/plant-dispatch/validate"
)

func baseConfig(hours int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Hours = hours
	return cfg
}

// TestAssembleZeroDemandScenarioSolvesAtZeroCost confirms a scenario with
// every demand at its default (heat/local_heat demand 0, no admixture) and
// every price set to zero assembles into a feasible, zero-cost model: every
// asset can simply stay idle.
func TestAssembleZeroDemandScenarioSolvesAtZeroCost(t *testing.T) {
	dir := t.TempDir()
	gasPriceCSV := filepath.Join(dir, "gas_price.csv")
	require.NoError(t, os.WriteFile(gasPriceCSV, []byte("t,gas_price\n1,0\n2,0\n"), 0o644))
	powerPriceCSV := filepath.Join(dir, "power_price.csv")
	require.NoError(t, os.WriteFile(powerPriceCSV, []byte("t,power_price\n1,0\n2,0\n"), 0o644))

	cfg := baseConfig(2)
	cfg.Timeseries["gas_price"] = config.TimeseriesSpec{File: gasPriceCSV, Index: "t", Param: "gas_price"}
	cfg.Timeseries["power_price"] = config.TimeseriesSpec{File: powerPriceCSV, Index: "t", Param: "power_price"}
	cfg.Parameters["CO2_PRICE"] = 0
	cfg.Parameters["HEAT_PRICE"] = 0
	cfg.Parameters["H2_PRICE"] = 0
	sc, err := assemble.Assemble("zero-demand", cfg)
	require.NoError(t, err)

	res, err := solver.Run("zero-demand", sc.Model, solver.Options{TimeLimit: 10 * time.Second, MIPGap: 1e-6})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.InDelta(t, 0, res.Objective, 1e-6)

	discrepancy, exceeded := validate.ReconcileCost(sc.Model.ObjectiveValue(), res.Objective)
	require.False(t, exceeded, "objective reconstruction discrepancy %v exceeds threshold", discrepancy)
}

func TestAssembleRejectsInvalidHydrogenAdmixture(t *testing.T) {
	cfg := baseConfig(2)
	cfg.Parameters["HYDROGEN_ADMIXTURE_CHP_1"] = 0.7
	_, err := assemble.Assemble("bad-admixture", cfg)
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.ConfigInvalid, ve.Kind)
}

// TestAssembleWiresHeatDemandThroughToCHP feeds a heat demand time series
// above the CHP's minimum-heat floor and confirms the heat bus balances
// demand against supply sourced from the assembled plant (spec.md 4.C/4.D's
// end-to-end wiring).
func TestAssembleWiresHeatDemandThroughToCHP(t *testing.T) {
	dir := t.TempDir()
	heatDemandCSV := filepath.Join(dir, "heat_demand.csv")
	require.NoError(t, os.WriteFile(heatDemandCSV, []byte("t,heat_demand\n1,20\n2,20\n"), 0o644))

	cfg := baseConfig(2)
	cfg.Timeseries["heat_demand"] = config.TimeseriesSpec{File: heatDemandCSV, Index: "t", Param: "heat_demand"}

	sc, err := assemble.Assemble("heat-demand", cfg)
	require.NoError(t, err)

	res, err := solver.Run("heat-demand", sc.Model, solver.Options{TimeLimit: 10 * time.Second, MIPGap: 1e-6})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)

	// Stage 1/2 heat pump output lands on the waste_heat/wp_heat buses, not
	// directly on the district heat bus, so only these ports participate in
	// the heat bus's own conservation row (spec.md 4.C). FWtoNW is a sink
	// on the heat bus (district heat exported to the local grid), so it
	// belongs on the demand side, not the supply side.
	for hour := 1; hour <= 2; hour++ {
		supplySide := sc.CHP1.Heat.At(hour) + sc.CHP2.Heat.At(hour) +
			sc.HeatStorage.Discharging.At(hour) + sc.Stratified.QZ1FW.At(hour) +
			sc.HeatBus.Supply.At(hour)
		demandSide := 20.0 + sc.HeatStorage.Charging.At(hour) + sc.HeatBus.Feedin.At(hour) +
			sc.HeatCoupling.FWtoNW.At(hour)
		require.InDelta(t, demandSide, supplySide, 1e-4, "hour %d: heat bus must balance exactly", hour)
	}
}

// TestAssembleRejectsUnknownAssetParameterTableColumn confirms spec.md
// 4.F's option-dict whitelist check runs at assembly time: a parameter
// table column outside an asset's documented keys is rejected as
// ConfigInvalid before the model is built.
func TestAssembleRejectsUnknownAssetParameterTableColumn(t *testing.T) {
	dir := t.TempDir()
	pvCSV := filepath.Join(dir, "pv.csv")
	require.NoError(t, os.WriteFile(pvCSV, []byte("index,power,bogus_option\nmax,20,1\n"), 0o644))

	cfg := baseConfig(2)
	cfg.AssetParameterTables["pv"] = pvCSV

	_, err := assemble.Assemble("bad-column", cfg)
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.ConfigInvalid, ve.Kind)
}

func TestAssembleReportsInputMissingForUnreadableTimeseries(t *testing.T) {
	cfg := baseConfig(2)
	cfg.Timeseries["heat_demand"] = config.TimeseriesSpec{File: "/nonexistent/heat_demand.csv", Index: "t", Param: "heat_demand"}

	_, err := assemble.Assemble("missing-file", cfg)
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.InputMissing, ve.Kind)
}

// TestAssembleAnnualLocalShareCovenantBindsAcrossHours confirms the
// covenant added in Assemble actually constrains the model once a local
// heat demand is present. Rather than pinning the district<->local
// transfer directly, this cuts off every other way the local_heat bus can
// be balanced (external local import, and the stratified store's own
// local-zone outflows) so the bus's own conservation row is what forces
// the district transfer up to cover all of local demand, exercising the
// real end-to-end invariant rather than asserting a row exists.
func TestAssembleAnnualLocalShareCovenantBindsAcrossHours(t *testing.T) {
	dir := t.TempDir()
	localDemandCSV := filepath.Join(dir, "local_heat_demand.csv")
	require.NoError(t, os.WriteFile(localDemandCSV, []byte("t,local_heat_demand\n1,10\n2,10\n"), 0o644))

	cfg := baseConfig(2)
	cfg.Timeseries["local_heat_demand"] = config.TimeseriesSpec{File: localDemandCSV, Index: "t", Param: "local_heat_demand"}

	sc, err := assemble.Assemble("covenant", cfg)
	require.NoError(t, err)

	sc.LocalHeatBus.Supply.Fix(1, 0)
	sc.LocalHeatBus.Supply.Fix(2, 0)
	sc.Stratified.QZ1NW.Fix(1, 0)
	sc.Stratified.QZ1NW.Fix(2, 0)
	sc.Stratified.QZ2NW.Fix(1, 0)
	sc.Stratified.QZ2NW.Fix(2, 0)

	// The local_heat bus's conservation row now reads
	// FWtoNW(t) - Feedin(t) = 10, and FWtoNW is capped at MFW2NW = 10, so
	// FWtoNW(t) = 10 for both hours is the only feasible assignment: 100%
	// of local demand covered by district import, far above the 20% cap.
	_, err = solver.Run("covenant-violation", sc.Model, solver.Options{TimeLimit: 10 * time.Second})
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.ModelInfeasible, ve.Kind)
}
