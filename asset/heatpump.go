package asset

import (
	"fmt"
	"math"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// HeatPumpParams holds one stage's refrigerant-cycle constants (spec.md
// 4.B.2). SourceTemp/SinkTemp (T1, T3) are exogenous per-hour series since
// they track ambient/ground conditions; the state-point enthalpies,
// pressure, speed, and cylinder count are fixed for a given compressor.
type HeatPumpParams struct {
	Stage int // 1 or 2

	MinHeatInput, MaxHeatInput float64

	R     float64 // specific gas constant of the refrigerant
	H1, H2, H4 float64
	P1    float64
	Z     float64 // cylinder count
	N     float64 // compressor speed
	EtaEl float64 // compressor electrical efficiency

	SourceTemp carrier.Variable // T1(t), exogenous
	SinkTemp   carrier.Variable // T3(t), exogenous
}

// stage2HeatInputCap is the spec.md 4.B.2 hard cap on stage 2's source
// input, independent of any configured MaxHeatInput.
const stage2HeatInputCap = 2.05

// HeatPump is one stage of the two-stage heat-pump cascade.
type HeatPump struct {
	name   string
	params HeatPumpParams

	Bin                  *plant.VarSeries
	HeatInput            *plant.VarSeries
	CapacityCompressor   *plant.VarSeries
	MassflowRefrigerant  *plant.VarSeries
	VolumeFlow           *plant.VarSeries
	SweptVolume          *plant.VarSeries
	Power                *plant.VarSeries
	Heat                 *plant.VarSeries
}

// NewHeatPump declares one heat-pump stage's variables and constraints.
func NewHeatPump(name string, m *plant.Model, p HeatPumpParams) (*HeatPump, error) {
	maxIn := p.MaxHeatInput
	if p.Stage == 2 && maxIn > stage2HeatInputCap {
		maxIn = stage2HeatInputCap
	}

	hp := &HeatPump{name: name, params: p}
	hp.Bin = m.NewSeries(name+".bin", plant.Binary, 0, 1)
	hp.HeatInput = m.NewSeries(name+".heat_input", plant.Continuous, 0, maxIn)
	hp.CapacityCompressor = m.NewSeries(name+".capacity_compressor", plant.Continuous, 0, math.Inf(1))
	hp.MassflowRefrigerant = m.NewSeries(name+".massflow_refrigerant", plant.Continuous, 0, math.Inf(1))
	hp.VolumeFlow = m.NewSeries(name+".volume_flow", plant.Continuous, 0, math.Inf(1))
	hp.SweptVolume = m.NewSeries(name+".swept_volume", plant.Continuous, 0, math.Inf(1))
	hp.Power = m.NewSeries(name+".power", plant.Continuous, 0, math.Inf(1))
	hp.Heat = m.NewSeries(name+".heat", plant.Continuous, 0, math.Inf(1))

	AddCommitmentGating(m, name+".heat_input", hp.HeatInput, hp.Bin, p.MinHeatInput, maxIn)

	// massflow_refrigerant(t) = heat_input(t) * 1000/(h1-h4)
	kMass := 1000.0 / (p.H1 - p.H4)
	// capacity_compressor(t) = massflow_refrigerant(t) * (h2-h1)/1000
	kCap := (p.H2 - p.H1) / 1000.0
	// volume_flow(t) = massflow_refrigerant(t) * R * T1/p1  (T1 exogenous, folded per-hour)
	// swept_volume(t) = volume_flow(t) * z/n
	kSwept := p.Z / p.N

	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s.massflow[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.MassflowRefrigerant.Ref(t): 1,
			hp.HeatInput.Ref(t):           -kMass,
		})
		m.AddRow(fmt.Sprintf("%s.capacity[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.CapacityCompressor.Ref(t):  1,
			hp.MassflowRefrigerant.Ref(t): -kCap,
		})
		kVol := p.R * p.SourceTemp.At(t) / p.P1
		m.AddRow(fmt.Sprintf("%s.volumeflow[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.VolumeFlow.Ref(t):          1,
			hp.MassflowRefrigerant.Ref(t): -kVol,
		})
		m.AddRow(fmt.Sprintf("%s.sweptvolume[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.SweptVolume.Ref(t): 1,
			hp.VolumeFlow.Ref(t):  -kSwept,
		})
		m.AddRow(fmt.Sprintf("%s.power[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.Power.Ref(t):             1,
			hp.CapacityCompressor.Ref(t): -1 / p.EtaEl,
		})
		m.AddRow(fmt.Sprintf("%s.heat[%d]", name, t), plant.EQ, 0, map[int]float64{
			hp.Heat.Ref(t):               1,
			hp.CapacityCompressor.Ref(t): -1,
			hp.HeatInput.Ref(t):          -1,
		})
	}

	return hp, nil
}

func (hp *HeatPump) Name() string { return hp.name }

// COPIdeal returns the Carnot-ideal COP at hour t: T3/(T3-T1).
func (hp *HeatPump) COPIdeal(t int) float64 {
	t3, t1 := hp.params.SinkTemp.At(t), hp.params.SourceTemp.At(t)
	return t3 / (t3 - t1)
}

// Degradation returns the empirical R-717 degradation factor at hour t:
// 0.6932 - 0.4851/COP_ideal(t).
func (hp *HeatPump) Degradation(t int) float64 {
	return 0.6932 - 0.4851/hp.COPIdeal(t)
}

// COPReal returns COP_ideal(t) * Degradation(t).
func (hp *HeatPump) COPReal(t int) float64 {
	return hp.COPIdeal(t) * hp.Degradation(t)
}

// Ports returns in {power, waste_heat}; out {waste_heat} for stage 1 or
// {wp_heat} for stage 2, per spec.md 4.B.2.
func (hp *HeatPump) Ports() []carrier.Port {
	outCarrier := carrier.WasteHeat
	if hp.params.Stage == 2 {
		outCarrier = carrier.WPHeat
	}
	return []carrier.Port{
		carrier.NewPort(hp.name, carrier.Power, carrier.Sink, hp.Power),
		carrier.NewPort(hp.name, carrier.WasteHeat, carrier.Sink, hp.HeatInput),
		carrier.NewPort(hp.name, outCarrier, carrier.Source, hp.Heat),
	}
}
