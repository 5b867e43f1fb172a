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

func stage1Params() asset.HeatPumpParams {
	return asset.HeatPumpParams{
		Stage:        1,
		MinHeatInput: 0.1,
		MaxHeatInput: 3.0,
		R:            0.0815,
		H1:           1440, H2: 1620, H4: 420,
		P1:    3.5,
		Z:     6,
		N:     1450,
		EtaEl: 0.92,
		SourceTemp: carrier.Series{0, 10},
		SinkTemp:   carrier.Series{0, 55},
	}
}

func TestHeatPumpStage2HeatInputCappedRegardlessOfParams(t *testing.T) {
	p := stage1Params()
	p.Stage = 2
	p.MaxHeatInput = 5.0 // above the spec.md hard cap of 2.05
	m := plant.NewModel(1)
	hp, err := asset.NewHeatPump("hp2", m, p)
	require.NoError(t, err)

	hp.Bin.Fix(1, 1)
	hp.HeatInput.Fix(1, 2.05)

	res, err := solver.Run("hp2-cap", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.InDelta(t, 2.05, hp.HeatInput.At(1), 1e-6)
}

// TestHeatPumpDerivedQuantitiesFollowFixedInput fixes bin=1 and a known
// heat_input and checks the chain massflow -> capacity -> power/heat
// reproduces the documented algebra exactly (spec.md 4.B.2).
func TestHeatPumpDerivedQuantitiesFollowFixedInput(t *testing.T) {
	p := stage1Params()
	m := plant.NewModel(1)
	hp, err := asset.NewHeatPump("hp1", m, p)
	require.NoError(t, err)

	const heatInput = 1.5
	hp.Bin.Fix(1, 1)
	hp.HeatInput.Fix(1, heatInput)

	res, err := solver.Run("hp1-derived", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)

	wantMassflow := heatInput * 1000 / (p.H1 - p.H4)
	require.InDelta(t, wantMassflow, hp.MassflowRefrigerant.At(1), 1e-6)

	wantCapacity := wantMassflow * (p.H2 - p.H1) / 1000.0
	require.InDelta(t, wantCapacity, hp.CapacityCompressor.At(1), 1e-6)

	wantPower := wantCapacity / p.EtaEl
	require.InDelta(t, wantPower, hp.Power.At(1), 1e-6)

	wantHeat := wantCapacity + heatInput
	require.InDelta(t, wantHeat, hp.Heat.At(1), 1e-6)
}

func TestHeatPumpGatingForcesZeroInputWhenOff(t *testing.T) {
	p := stage1Params()
	m := plant.NewModel(1)
	hp, err := asset.NewHeatPump("hp1", m, p)
	require.NoError(t, err)

	hp.Bin.Fix(1, 0)
	res, err := solver.Run("hp1-off", m, solver.Options{TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.Equal(t, 0.0, hp.HeatInput.At(1))
	require.Equal(t, 0.0, hp.Heat.At(1))
}

func TestHeatPumpCOPChain(t *testing.T) {
	p := stage1Params()
	m := plant.NewModel(1)
	hp, err := asset.NewHeatPump("hp1", m, p)
	require.NoError(t, err)

	wantCOPIdeal := p.SinkTemp.At(1) / (p.SinkTemp.At(1) - p.SourceTemp.At(1))
	require.InDelta(t, wantCOPIdeal, hp.COPIdeal(1), 1e-9)

	wantDegradation := 0.6932 - 0.4851/wantCOPIdeal
	require.InDelta(t, wantDegradation, hp.Degradation(1), 1e-9)

	require.InDelta(t, wantCOPIdeal*wantDegradation, hp.COPReal(1), 1e-9)
}

func TestHeatPumpPortsCarrierByStage(t *testing.T) {
	m := plant.NewModel(1)
	hp1, err := asset.NewHeatPump("hp1", m, stage1Params())
	require.NoError(t, err)
	foundWasteHeatOut := false
	for _, port := range hp1.Ports() {
		if port.Carrier == carrier.WasteHeat && port.Direction == carrier.Source {
			foundWasteHeatOut = true
		}
	}
	require.True(t, foundWasteHeatOut, "stage 1 must source waste_heat")

	m2 := plant.NewModel(1)
	p2 := stage1Params()
	p2.Stage = 2
	hp2, err := asset.NewHeatPump("hp2", m2, p2)
	require.NoError(t, err)
	foundWPHeatOut := false
	for _, port := range hp2.Ports() {
		if port.Carrier == carrier.WPHeat && port.Direction == carrier.Source {
			foundWPHeatOut = true
		}
	}
	require.True(t, foundWPHeatOut, "stage 2 must source wp_heat")
}
