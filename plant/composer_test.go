package plant_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
	"github.com/devskill-org/plant-dispatch/solver"
)

func TestComposerConnectRejectsCarrierMismatch(t *testing.T) {
	m := plant.NewModel(1)
	comp := plant.NewComposer(m)
	comp.AddBus(plant.NewBus("power", carrier.Power))

	gasFlow := m.NewSeries("gas_flow", plant.Continuous, 0, 10)
	port := carrier.NewPort("gas_source", carrier.NaturalGas, carrier.Source, gasFlow)

	err := comp.Connect("power", port)
	require.Error(t, err)
	var mismatch *carrier.ErrCarrierMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, "power", mismatch.Bus)
}

func TestComposerConnectRejectsUnknownBus(t *testing.T) {
	m := plant.NewModel(1)
	comp := plant.NewComposer(m)
	flow := m.NewSeries("flow", plant.Continuous, 0, 10)
	err := comp.Connect("nonexistent", carrier.NewPort("x", carrier.Power, carrier.Source, flow))
	require.Error(t, err)
}

// TestComposerBuildConservesSourcesAndSinks wires two sources and one sink
// onto a demand-pinned bus and confirms the conservation row reproduces
// sum(sources) - sum(sinks) == demand exactly.
func TestComposerBuildConservesSourcesAndSinks(t *testing.T) {
	m := plant.NewModel(1)
	comp := plant.NewComposer(m)
	demand := carrier.Series{0, 40}
	comp.AddBus(plant.NewDemandBus("power", carrier.Power, demand))

	sourceA := m.NewSeries("source_a", plant.Continuous, 0, 100)
	sourceB := m.NewSeries("source_b", plant.Continuous, 0, 100)
	sinkC := m.NewSeries("sink_c", plant.Continuous, 0, 100)

	require.NoError(t, comp.Connect("power", carrier.NewPort("a", carrier.Power, carrier.Source, sourceA)))
	require.NoError(t, comp.Connect("power", carrier.NewPort("b", carrier.Power, carrier.Source, sourceB)))
	require.NoError(t, comp.Connect("power", carrier.NewPort("c", carrier.Power, carrier.Sink, sinkC)))
	require.NoError(t, comp.Build())

	sourceA.Fix(1, 30)
	sinkC.Fix(1, 10)
	// sourceA(30) + sourceB(?) - sinkC(10) = 40  =>  sourceB = 20

	res, err := solver.Run("conserve", m, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	require.InDelta(t, 20, sourceB.At(1), 1e-6)
}

// TestComposerBuildSkipsBusesWithNoConnectedPorts confirms a registered but
// never-connected bus produces no rows (and therefore can never make the
// model infeasible), per plant/composer.go's explicit len(coef)==0 skip.
func TestComposerBuildSkipsBusesWithNoConnectedPorts(t *testing.T) {
	m := plant.NewModel(1)
	comp := plant.NewComposer(m)
	comp.AddBus(plant.NewDemandBus("heat", carrier.Heat, carrier.Series{0, 999}))

	rowsBefore := m.NRows()
	require.NoError(t, comp.Build())
	require.Equal(t, rowsBefore, m.NRows(), "an unconnected demand bus must add no constraint rows")
}

func TestComposerLookupBus(t *testing.T) {
	m := plant.NewModel(1)
	comp := plant.NewComposer(m)
	bus := plant.NewBus("hydrogen", carrier.Hydrogen)
	comp.AddBus(bus)

	got, ok := comp.Bus("hydrogen")
	require.True(t, ok)
	require.Equal(t, bus, got)

	_, ok = comp.Bus("missing")
	require.False(t, ok)
}
