package asset

import (
	"math"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// PVParams holds the photovoltaic array's fixed envelope and exogenous
// profile (spec.md 4.B.3).
type PVParams struct {
	InstalledPower      float64
	InverterEfficiency   float64
	Profile              carrier.Variable // normalized capacity factor per hour
}

// PV is a price-taking photovoltaic array: its output is fully determined
// by InstalledPower * InverterEfficiency * Profile[t].
type PV struct {
	name   string
	Power  *plant.VarSeries
}

func NewPV(name string, m *plant.Model, p PVParams) *PV {
	pv := &PV{name: name}
	pv.Power = m.NewSeries(name+".power", plant.Continuous, 0, math.Inf(1))
	fixSeries(pv.Power, p.Profile, p.InstalledPower*p.InverterEfficiency)
	return pv
}

func (pv *PV) Name() string { return pv.name }

func (pv *PV) Ports() []carrier.Port {
	return []carrier.Port{carrier.NewPort(pv.name, carrier.Power, carrier.Source, pv.Power)}
}

// SolarThermalParams holds the collector's exogenous heat profile
// (spec.md 4.B.4).
type SolarThermalParams struct {
	Profile carrier.Variable // heat output per hour, MW
}

// SolarThermal is a price-taking solar-thermal collector whose heat output
// equals the exogenous profile exactly.
type SolarThermal struct {
	name string
	Heat *plant.VarSeries
}

func NewSolarThermal(name string, m *plant.Model, p SolarThermalParams) *SolarThermal {
	s := &SolarThermal{name: name}
	s.Heat = m.NewSeries(name+".heat", plant.Continuous, 0, math.Inf(1))
	fixSeries(s.Heat, p.Profile, 1)
	return s
}

func (s *SolarThermal) Name() string { return s.name }

func (s *SolarThermal) Ports() []carrier.Port {
	return []carrier.Port{carrier.NewPort(s.name, carrier.STHeat, carrier.Source, s.Heat)}
}
