package asset

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// Stratified-store physical constants (spec.md 4.B.7).
const (
	stratifiedKZ1           = 0.0534
	stratifiedKZ2           = 0.0534
	waterDensityKgM3        = 1000.0
	specificHeatMJPerKgK    = 4.1868 / 1000.0
	stratifiedDeltaTZ1      = 38.0
	stratifiedDeltaTZ2      = 23.0
	stratifiedVMax          = 2000.0
	stratifiedInitialZ1Frac = 0.5
)

// zoneEnergyDensity returns e_Zi = 1000 * (4.1868/1000) * deltaT / 3600
// [MWh/m^3], the conversion factor tying a zone's energy content to its
// volume share of the shared vessel.
func zoneEnergyDensity(deltaT float64) float64 {
	return waterDensityKgM3 * specificHeatMJPerKgK * deltaT / 3600.0
}

// StratifiedStoreParams holds the only configurable knobs beyond the fixed
// physical constants: the discharge cap and the optional seasonal
// restriction.
type StratifiedStoreParams struct {
	HeatMax float64
	// SeasonalRestriction, when true, forces Q_Z1_FW(t) = 0 for every hour
	// in the winter-half-year set (spec.md 4.B.7).
	SeasonalRestriction bool
}

// StratifiedStore is the only asset owning a thermodynamic state: two
// zones sharing one physical vessel (spec.md 4.B.7).
type StratifiedStore struct {
	name   string
	params StratifiedStoreParams

	QST    *plant.VarSeries // solar inflow to Z1
	QWP    *plant.VarSeries // heat-pump inflow to Z2
	QZ1FW  *plant.VarSeries // Z1 -> district heat
	QZ1NW  *plant.VarSeries // Z1 -> local heat
	QZ2NW  *plant.VarSeries // Z2 -> local heat
	UZ1    *plant.VarSeries // Z1 content
	UZ2    *plant.VarSeries // Z2 content

	binZ1FW *plant.VarSeries
	binZ1NW *plant.VarSeries
	binZ2NW *plant.VarSeries
	binZST  *plant.VarSeries

	eZ1, eZ2 float64
}

// WinterHours returns the union of winter-half-year hour indices for a
// horizon of n hours, per spec.md 4.B.7's year-length-aware ranges.
func WinterHours(n int) map[int]struct{} {
	set := map[int]struct{}{}
	add := func(lo, hi int) {
		for t := lo; t <= hi; t++ {
			set[t] = struct{}{}
		}
	}
	switch n {
	case 8760:
		add(1, 2878)
		add(7295, n)
	case 8784:
		add(1, 2902)
		add(7319, n)
	case 168:
		add(1, 10)
		add(11, 13)
	default:
		// Unknown horizon length: no seasonal restriction can be derived;
		// callers should not enable SeasonalRestriction for such a horizon.
	}
	return set
}

func NewStratifiedStore(name string, m *plant.Model, p StratifiedStoreParams) *StratifiedStore {
	s := &StratifiedStore{name: name, params: p}
	s.eZ1 = zoneEnergyDensity(stratifiedDeltaTZ1)
	s.eZ2 = zoneEnergyDensity(stratifiedDeltaTZ2)

	s.QST = m.NewSeries(name+".Q_ST", plant.Continuous, 0, p.HeatMax)
	s.QWP = m.NewSeries(name+".Q_WP", plant.Continuous, 0, p.HeatMax)
	s.QZ1FW = m.NewSeries(name+".Q_Z1_FW", plant.Continuous, 0, p.HeatMax)
	s.QZ1NW = m.NewSeries(name+".Q_Z1_NW", plant.Continuous, 0, p.HeatMax)
	s.QZ2NW = m.NewSeries(name+".Q_Z2_NW", plant.Continuous, 0, p.HeatMax)
	s.UZ1 = m.NewSeries(name+".U_Z1", plant.Continuous, 0, stratifiedVMax*s.eZ1)
	s.UZ2 = m.NewSeries(name+".U_Z2", plant.Continuous, 0, stratifiedVMax*s.eZ2)

	s.binZ1FW = m.NewSeries(name+".bin_z1_fw", plant.Binary, 0, 1)
	s.binZ1NW = m.NewSeries(name+".bin_z1_nw", plant.Binary, 0, 1)
	s.binZ2NW = m.NewSeries(name+".bin_z2_nw", plant.Binary, 0, 1)
	s.binZST = m.NewSeries(name+".bin_st", plant.Binary, 0, 1)
	AddCommitmentGating(m, name+".Q_Z1_FW", s.QZ1FW, s.binZ1FW, 0, p.HeatMax)
	AddCommitmentGating(m, name+".Q_Z1_NW", s.QZ1NW, s.binZ1NW, 0, p.HeatMax)
	AddCommitmentGating(m, name+".Q_Z2_NW", s.QZ2NW, s.binZ2NW, 0, p.HeatMax)
	AddCommitmentGating(m, name+".Q_ST", s.QST, s.binZST, 0, p.HeatMax)

	initialU_Z1 := stratifiedInitialZ1Frac * stratifiedVMax * s.eZ1
	initialU_Z2 := (1 - stratifiedInitialZ1Frac) * stratifiedVMax * s.eZ2

	for t := 1; t <= m.Hours; t++ {
		if t == 1 {
			m.AddRow(fmt.Sprintf("%s.U_Z1[%d]", name, t), plant.EQ, (1-stratifiedKZ1)*initialU_Z1, map[int]float64{
				s.UZ1.Ref(t):   1,
				s.QST.Ref(t):   -1,
				s.QZ1FW.Ref(t): 1,
				s.QZ1NW.Ref(t): 1,
			})
			m.AddRow(fmt.Sprintf("%s.U_Z2[%d]", name, t), plant.EQ, (1-stratifiedKZ2)*initialU_Z2, map[int]float64{
				s.UZ2.Ref(t):   1,
				s.QWP.Ref(t):   -1,
				s.QZ2NW.Ref(t): 1,
			})
		} else {
			m.AddRow(fmt.Sprintf("%s.U_Z1[%d]", name, t), plant.EQ, 0, map[int]float64{
				s.UZ1.Ref(t):       1,
				s.UZ1.Ref(t - 1):   -(1 - stratifiedKZ1),
				s.QST.Ref(t):       -1,
				s.QZ1FW.Ref(t):     1,
				s.QZ1NW.Ref(t):     1,
			})
			m.AddRow(fmt.Sprintf("%s.U_Z2[%d]", name, t), plant.EQ, 0, map[int]float64{
				s.UZ2.Ref(t):     1,
				s.UZ2.Ref(t - 1): -(1 - stratifiedKZ2),
				s.QWP.Ref(t):     -1,
				s.QZ2NW.Ref(t):   1,
			})
		}

		// Coupled-volume constraint: U_Z1(t)/e_Z1 + U_Z2(t)/e_Z2 <= V_max
		m.AddRow(fmt.Sprintf("%s.coupled_volume[%d]", name, t), plant.LE, stratifiedVMax, map[int]float64{
			s.UZ1.Ref(t): 1 / s.eZ1,
			s.UZ2.Ref(t): 1 / s.eZ2,
		})

		// Discharge caps.
		m.AddRow(fmt.Sprintf("%s.fw_cap[%d]", name, t), plant.LE, p.HeatMax, map[int]float64{
			s.QZ1FW.Ref(t): 1,
		})
		m.AddRow(fmt.Sprintf("%s.nw_cap[%d]", name, t), plant.LE, p.HeatMax, map[int]float64{
			s.QZ1NW.Ref(t): 1,
			s.QZ2NW.Ref(t): 1,
		})
	}

	if p.SeasonalRestriction {
		for t := range WinterHours(m.Hours) {
			if t >= 1 && t <= m.Hours {
				s.QZ1FW.Fix(t, 0)
			}
		}
	}

	return s
}

func (s *StratifiedStore) Name() string { return s.name }

// Ports returns in {st_heat, wp_heat}; out {nw_excess_heat (Z1_FW),
// local_heat (Z1_NW and Z2_NW)}, per spec.md 4.B.7.
func (s *StratifiedStore) Ports() []carrier.Port {
	return []carrier.Port{
		carrier.NewPort(s.name, carrier.STHeat, carrier.Sink, s.QST),
		carrier.NewPort(s.name, carrier.WPHeat, carrier.Sink, s.QWP),
		carrier.NewPort(s.name, carrier.NWExcessHeat, carrier.Source, s.QZ1FW),
		carrier.NewPort(s.name, carrier.LocalHeat, carrier.Source, s.QZ1NW),
		carrier.NewPort(s.name, carrier.LocalHeat, carrier.Source, s.QZ2NW),
	}
}
