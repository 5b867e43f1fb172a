package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/plant-dispatch/asset"
	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
	"github.com/devskill-org/plant-dispatch/validate"
)

// buildCHPOnlyModel assembles a single-hour scenario: one CHP feeding a
// power bus and a heat bus, each pinned to a fixed demand, gas bought at a
// fixed price and power sold at a fixed price. demandHeat must lie exactly
// on the CHP's heat/power chord for the given demandPower, since heat is
// an affine function of power once committed, not an independent choice.
func buildCHPOnlyModel(t *testing.T, demandPower, demandHeat, gasPrice, powerPrice float64) (*plant.Model, *asset.CHP) {
	t.Helper()
	m := plant.NewModel(1)

	chp, err := asset.NewCHP("chp1", m, asset.CHPParams{
		MinPower: 10, MaxPower: 100,
		MinGas: 20, MaxGas: 250,
		MinHeat: 15, MaxHeat: 120,
		MinCO2: 2, MaxCO2: 25,
		MinWasteHeat: 1, MaxWasteHeat: 10,
	})
	require.NoError(t, err)

	powerDemand := fixedSeries(1, demandPower)
	heatDemand := fixedSeries(1, demandHeat)

	comp := plant.NewComposer(m)
	comp.AddBus(plant.NewDemandBus("power", carrier.Power, powerDemand))
	comp.AddBus(plant.NewDemandBus("heat", carrier.Heat, heatDemand))
	comp.AddBus(plant.NewBus("natural_gas", carrier.NaturalGas))
	comp.AddBus(plant.NewBus("waste_heat", carrier.WasteHeat))

	gasSupply := m.NewSeries("gas_supply", plant.Continuous, 0, 1000)
	wasteVent := m.NewSeries("waste_vent", plant.Continuous, 0, 1e6)

	for _, p := range chp.Ports() {
		var bus string
		switch p.Carrier {
		case carrier.Power:
			bus = "power"
		case carrier.Heat:
			bus = "heat"
		case carrier.WasteHeat:
			bus = "waste_heat"
		case carrier.NaturalGas:
			bus = "natural_gas"
		}
		require.NoError(t, comp.Connect(bus, p))
	}
	require.NoError(t, comp.Connect("natural_gas", carrier.NewPort("gas_supply", carrier.NaturalGas, carrier.Source, gasSupply)))
	require.NoError(t, comp.Connect("waste_heat", carrier.NewPort("waste_vent", carrier.WasteHeat, carrier.Sink, wasteVent)))
	require.NoError(t, comp.Build())

	m.AddObjective(gasSupply.Ref(1), gasPrice)
	m.AddObjective(chp.Power.Ref(1), -powerPrice) // power sold, so it's revenue (negative cost)

	return m, chp
}

func fixedSeries(hours int, value float64) carrier.Series {
	s := carrier.NewSeries(hours)
	for t := 1; t <= hours; t++ {
		s[t] = value
	}
	return s
}

func TestSolveCHPOnlyCostReconciliation(t *testing.T) {
	m, chp := buildCHPOnlyModel(t, 40, 50, 0.05, 0.12)

	res, err := Run("chp-only", m, Options{TimeLimit: 10 * time.Second, MIPGap: 1e-6})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)

	require.InDelta(t, 1.0, chp.Bin.At(1), 1e-6, "CHP must commit to meet a 40 MW demand above its 10 MW minimum")
	require.InDelta(t, 40, chp.Power.At(1), 1e-6)

	reconstructed := m.ObjectiveValue()
	discrepancy, exceeded := validate.ReconcileCost(reconstructed, res.Objective)
	require.False(t, exceeded, "objective reconstruction discrepancy %v exceeds threshold", discrepancy)
}

func TestSolveInfeasibleDemandAboveCapacity(t *testing.T) {
	m, _ := buildCHPOnlyModel(t, 500, 30, 0.05, 0.12)
	_, err := Run("chp-over-capacity", m, Options{TimeLimit: 5 * time.Second})
	require.Error(t, err)
	var ve *validate.Error
	require.ErrorAs(t, err, &ve)
	require.Equal(t, validate.ModelInfeasible, ve.Kind)
}

func TestSolveEmptyHorizonModel(t *testing.T) {
	m := plant.NewModel(0)
	res, err := Run("empty", m, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.Equal(t, 0.0, res.Objective)
}

func TestAdmixtureEnergySplitIntegrity(t *testing.T) {
	m := plant.NewModel(1)
	chp, err := asset.NewCHP("chp_h2", m, asset.CHPParams{
		MinPower: 10, MaxPower: 100,
		MinGas: 20, MaxGas: 250,
		MinHeat: 15, MaxHeat: 120,
		MinCO2: 2, MaxCO2: 25,
		MinWasteHeat: 1, MaxWasteHeat: 10,
		HydrogenAdmixture: 0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, chp.Hydrogen)
	require.NotNil(t, chp.NaturalGas)

	// Fix the gas draw directly and confirm the split rows recover the
	// expected energy-weighted hydrogen share for f=0.5.
	chp.Bin.Fix(1, 1)
	chp.Gas.Fix(1, 100)

	phiH2, phiNG := asset.AdmixtureEnergyShare(0.5)
	require.InDelta(t, 1, phiH2+phiNG, 1e-9)
	require.Less(t, phiH2, 0.5, "hydrogen carries less energy per cubic metre (0.09*120 = 10.8 MJ) than natural gas (0.68*47 = 31.96 MJ), so its energy share is below its volumetric share at equal admixture")

	res, err := Run("admixture-split", m, Options{TimeLimit: 5 * time.Second, MIPGap: 1e-6})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.InDelta(t, 100*phiH2, chp.Hydrogen.At(1), 1e-6)
	require.InDelta(t, 100*phiNG, chp.NaturalGas.At(1), 1e-6)
}

func TestBranchAndBoundRespectsNodeLimit(t *testing.T) {
	m, _ := buildCHPOnlyModel(t, 40, 50, 0.05, 0.12)
	opts := DefaultOptions()
	opts.NodeLimit = 1
	res := Solve(m, opts)
	require.LessOrEqual(t, res.NodesExplored, 1)
}
