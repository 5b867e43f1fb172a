package asset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/plant-dispatch/asset"
	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
	"github.com/devskill-org/plant-dispatch/solver"
)

func TestCarrierBusBalanceDefinition(t *testing.T) {
	m := plant.NewModel(1)
	bus := asset.NewCarrierBus("power", m, asset.BusParams{
		Carrier: carrier.Power, MaxFlow: 100, HasFeedin: true,
	})
	bus.Supply.Fix(1, 30)
	bus.Feedin.Fix(1, 12)

	res, err := solver.Run("bus-balance", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.InDelta(t, 18, bus.Balance.At(1), 1e-6, "balance = supply - feedin")
}

func TestCarrierBusWithoutFeedinHasNoFeedinVariable(t *testing.T) {
	m := plant.NewModel(1)
	bus := asset.NewCarrierBus("natural_gas", m, asset.BusParams{
		Carrier: carrier.NaturalGas, MaxFlow: 100,
	})
	require.Nil(t, bus.Feedin)
	require.Len(t, bus.Ports(), 1)
}

// TestHeatLocalCouplingExclusiveTransfer confirms the excess-inflow and
// district<->local transfer binaries cannot both be active in the same
// hour (spec.md 4.B.8's exclusive-transfer property).
func TestHeatLocalCouplingExclusiveTransfer(t *testing.T) {
	m := plant.NewModel(1)
	stratifiedOutflow := m.NewSeries("strat.Q_Z1_FW", plant.Continuous, 0, 20)
	coupling := asset.NewHeatLocalCoupling("coupling", m, asset.DefaultHeatLocalCoupling(), stratifiedOutflow)

	stratifiedOutflow.Fix(1, 5)
	coupling.FWtoNW.Fix(1, 5)

	_, err := solver.Run("coupling-exclusive", m, solver.Options{TimeLimit: 5 * time.Second})
	require.Error(t, err, "both excess inflow and the fw-to-nw transfer active in the same hour must be infeasible")
}

func TestHeatLocalCouplingAllowsEitherAloneAboveMinimum(t *testing.T) {
	m := plant.NewModel(1)
	stratifiedOutflow := m.NewSeries("strat.Q_Z1_FW", plant.Continuous, 0, 20)
	coupling := asset.NewHeatLocalCoupling("coupling", m, asset.DefaultHeatLocalCoupling(), stratifiedOutflow)

	stratifiedOutflow.Fix(1, 2) // above MMin = 0.5, below MExcess = 10
	coupling.FWtoNW.Fix(1, 0)

	res, err := solver.Run("coupling-excess-only", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.InDelta(t, 2, coupling.ExcessInflow.At(1), 1e-6)
}

func TestAnnualLocalShareCovenantCapsDistrictInflow(t *testing.T) {
	m := plant.NewModel(2)
	districtInflow := m.NewSeries("district_inflow", plant.Continuous, 0, 1000)
	demand := carrier.Series{0, 100, 100} // total 200 across 2 hours

	asset.AnnualLocalShareCovenant(m, "local_heat", districtInflow, demand)

	// 25 + 25 = 50 > 0.20*200 = 40, so this must be infeasible once pinned.
	districtInflow.Fix(1, 25)
	districtInflow.Fix(2, 25)
	_, err := solver.Run("covenant-violation", m, solver.Options{TimeLimit: 5 * time.Second})
	require.Error(t, err)
}

func TestAnnualLocalShareCovenantAllowsUnderCap(t *testing.T) {
	m := plant.NewModel(2)
	districtInflow := m.NewSeries("district_inflow", plant.Continuous, 0, 1000)
	demand := carrier.Series{0, 100, 100}

	asset.AnnualLocalShareCovenant(m, "local_heat", districtInflow, demand)

	districtInflow.Fix(1, 15)
	districtInflow.Fix(2, 15)
	res, err := solver.Run("covenant-ok", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
}
