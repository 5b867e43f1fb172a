package asset

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// Fuel energy-density constants for the CHP's hydrogen admixture split
// (spec.md 4.B.1): volumetric densities and heating values combine into an
// energy-per-cubic-metre figure for each fuel.
const (
	hydrogenDensityKgM3  = 0.09  // RHO_H2 [kg/m^3]
	hydrogenHeatingMJKg  = 120.0 // HV_H2 [MJ/kg]
	naturalGasDensityKgM3 = 0.68 // RHO_NG [kg/m^3]
	naturalGasHeatingMJKg = 47.0 // HV_NG [MJ/kg]
)

func hydrogenEnergyDensity() float64  { return hydrogenDensityKgM3 * hydrogenHeatingMJKg }
func naturalGasEnergyDensity() float64 { return naturalGasDensityKgM3 * naturalGasHeatingMJKg }

// AllowedAdmixtures is the closed set of valid hydrogen admixture factors
// (spec.md 4.F): volumetric H2 share in the CHP fuel mix.
var AllowedAdmixtures = []float64{0, 0.3, 0.5, 1.0}

// IsValidAdmixture reports whether f is one of the allowed admixture
// factors.
func IsValidAdmixture(f float64) bool {
	for _, a := range AllowedAdmixtures {
		if a == f {
			return true
		}
	}
	return false
}

// AdmixtureEnergyShare computes phi_H2, the energy-weighted share of
// hydrogen in the fuel mix, from the volumetric admixture factor f.
func AdmixtureEnergyShare(f float64) (phiH2, phiNG float64) {
	if f == 0 {
		return 0, 1
	}
	eH2 := hydrogenEnergyDensity()
	eNG := naturalGasEnergyDensity()
	phiH2 = (f * eH2) / (f*eH2 + (1-f)*eNG)
	return phiH2, 1 - phiH2
}

// CHPParams holds a cogeneration unit's fixed envelope and optional kwargs.
type CHPParams struct {
	MinPower, MaxPower         float64
	MinGas, MaxGas             float64
	MinHeat, MaxHeat           float64
	MinCO2, MaxCO2             float64
	MinWasteHeat, MaxWasteHeat float64

	// HydrogenAdmixture is the volumetric H2 share, one of AllowedAdmixtures.
	HydrogenAdmixture float64
	// ForcedOperationHours requires sum_t bin(t) >= this many hours.
	ForcedOperationHours int
}

// CHP is a gas/hydrogen-fired cogeneration unit (spec.md 4.B.1).
type CHP struct {
	name   string
	params CHPParams

	Bin       *plant.VarSeries
	Gas       *plant.VarSeries
	Power     *plant.VarSeries
	Heat      *plant.VarSeries
	CO2       *plant.VarSeries
	WasteHeat *plant.VarSeries

	// Present only when HydrogenAdmixture > 0.
	Hydrogen   *plant.VarSeries
	NaturalGas *plant.VarSeries

	phiH2, phiNG float64
}

// NewCHP declares a CHP's variables and constraints on m and returns the
// asset handle. Returns InvalidAdmixtureError if params.HydrogenAdmixture is
// not one of AllowedAdmixtures.
func NewCHP(name string, m *plant.Model, params CHPParams) (*CHP, error) {
	if !IsValidAdmixture(params.HydrogenAdmixture) {
		return nil, &InvalidAdmixtureError{Asset: name, Value: params.HydrogenAdmixture}
	}

	c := &CHP{name: name, params: params}
	c.Bin = m.NewSeries(name+".bin", plant.Binary, 0, 1)
	c.Gas = m.NewSeries(name+".gas", plant.Continuous, 0, params.MaxGas)
	c.Power = m.NewSeries(name+".power", plant.Continuous, 0, params.MaxPower)
	c.Heat = m.NewSeries(name+".heat", plant.Continuous, 0, params.MaxHeat)
	c.CO2 = m.NewSeries(name+".co2", plant.Continuous, 0, params.MaxCO2)
	c.WasteHeat = m.NewSeries(name+".waste_heat", plant.Continuous, 0, params.MaxWasteHeat)

	AddCommitmentGating(m, name+".power", c.Power, c.Bin, params.MinPower, params.MaxPower)

	aGas, bGas := ChordCoefficients(params.MinPower, params.MaxPower, params.MinGas, params.MaxGas)
	AddChordConstraint(m, name+".gas", c.Gas, c.Power, c.Bin, aGas, bGas, 1)

	aHeat, bHeat := ChordCoefficients(params.MinPower, params.MaxPower, params.MinHeat, params.MaxHeat)
	AddChordConstraint(m, name+".heat", c.Heat, c.Power, c.Bin, aHeat, bHeat, 1)

	aWH, bWH := ChordCoefficients(params.MinPower, params.MaxPower, params.MinWasteHeat, params.MaxWasteHeat)
	AddChordConstraint(m, name+".waste_heat", c.WasteHeat, c.Power, c.Bin, aWH, bWH, 1)

	aCO2, bCO2 := ChordCoefficients(params.MinPower, params.MaxPower, params.MinCO2, params.MaxCO2)
	f := params.HydrogenAdmixture
	AddChordConstraint(m, name+".co2", c.CO2, c.Power, c.Bin, aCO2, bCO2, 1-f)

	if params.ForcedOperationHours > 0 {
		coef := map[int]float64{}
		for t := 1; t <= m.Hours; t++ {
			coef[c.Bin.Ref(t)] = 1
		}
		m.AddRow(name+".forced_operation", plant.GE, float64(params.ForcedOperationHours), coef)
	}

	if f > 0 {
		c.phiH2, c.phiNG = AdmixtureEnergyShare(f)
		c.Hydrogen = m.NewSeries(name+".hydrogen", plant.Continuous, 0, params.MaxGas)
		c.NaturalGas = m.NewSeries(name+".natural_gas", plant.Continuous, 0, params.MaxGas)
		for t := 1; t <= m.Hours; t++ {
			m.AddRow(fmt.Sprintf("%s.hydrogen_split[%d]", name, t), plant.EQ, 0, map[int]float64{
				c.Hydrogen.Ref(t): 1,
				c.Gas.Ref(t):      -c.phiH2,
			})
			m.AddRow(fmt.Sprintf("%s.naturalgas_split[%d]", name, t), plant.EQ, 0, map[int]float64{
				c.NaturalGas.Ref(t): 1,
				c.Gas.Ref(t):        -c.phiNG,
			})
		}
	} else {
		c.NaturalGas = c.Gas
	}

	return c, nil
}

func (c *CHP) Name() string { return c.name }

// Ports returns out {power, heat, waste_heat}; in {natural_gas, hydrogen}
// (hydrogen only present when admixture > 0), per spec.md 4.B.1.
func (c *CHP) Ports() []carrier.Port {
	ports := []carrier.Port{
		carrier.NewPort(c.name, carrier.Power, carrier.Source, c.Power),
		carrier.NewPort(c.name, carrier.Heat, carrier.Source, c.Heat),
		carrier.NewPort(c.name, carrier.WasteHeat, carrier.Source, c.WasteHeat),
		carrier.NewPort(c.name, carrier.NaturalGas, carrier.Sink, c.NaturalGas),
	}
	if c.Hydrogen != nil {
		ports = append(ports, carrier.NewPort(c.name, carrier.Hydrogen, carrier.Sink, c.Hydrogen))
	}
	return ports
}

// InvalidAdmixtureError is returned when a CHP is configured with a
// hydrogen admixture factor outside AllowedAdmixtures.
type InvalidAdmixtureError struct {
	Asset string
	Value float64
}

func (e *InvalidAdmixtureError) Error() string {
	return fmt.Sprintf("asset %q: invalid hydrogen admixture %v (allowed: %v)", e.Asset, e.Value, AllowedAdmixtures)
}
