package asset

import (
	"fmt"
	"math"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// BatteryParams holds the battery's fixed envelope (spec.md 4.B.5).
type BatteryParams struct {
	MaxPower               float64
	MinContent, MaxContent float64
	// InitialContent/FinalContent resolve spec.md 9's open question (i):
	// InitialContent defaults to 0 when unset; FinalContent is
	// unconstrained unless explicitly set (HasFinalContent true).
	InitialContent   float64
	HasFinalContent  bool
	FinalContent     float64
	// CyclicBehaviour, when > 0, enables the switch-counting window of
	// at most one charge<->discharge transition per CyclicBehaviour hours.
	CyclicBehaviour int
}

// Battery is an electrical storage asset with cyclic-behaviour switch
// counting (spec.md 4.B.5).
type Battery struct {
	name   string
	params BatteryParams

	PowerCharging    *plant.VarSeries
	PowerDischarging *plant.VarSeries
	PowerBalance     *plant.VarSeries
	PowerContent     *plant.VarSeries
	BinCharge        *plant.VarSeries
	BinDischarge     *plant.VarSeries
	BinSwitch        *plant.VarSeries
	AuxRemainder     *plant.VarSeries
	AuxQuotient      *plant.VarSeries
	CyclicSwitchBin  *plant.VarSeries // nil unless CyclicBehaviour > 0
}

func NewBattery(name string, m *plant.Model, p BatteryParams) *Battery {
	b := &Battery{name: name, params: p}

	b.PowerCharging = m.NewSeries(name+".power_charging", plant.Continuous, 0, p.MaxPower)
	b.PowerDischarging = m.NewSeries(name+".power_discharging", plant.Continuous, 0, p.MaxPower)
	b.PowerBalance = m.NewSeries(name+".power_balance", plant.Continuous, math.Inf(-1), math.Inf(1))
	b.PowerContent = m.NewSeries(name+".power_content", plant.Continuous, p.MinContent, p.MaxContent)
	b.BinCharge = m.NewSeries(name+".bin_charge", plant.Binary, 0, 1)
	b.BinDischarge = m.NewSeries(name+".bin_discharge", plant.Binary, 0, 1)
	b.BinSwitch = m.NewSeries(name+".bin_switch", plant.Binary, 0, 1)
	b.AuxRemainder = m.NewSeries(name+".aux_remainder", plant.Continuous, 0, 3)
	// switch_state+2 is one of {0, 2, 4}, so the integer quotient by 4 is 0
	// or 1 and is declared binary.
	b.AuxQuotient = m.NewSeries(name+".aux_quotient", plant.Binary, 0, 1)

	AddCommitmentGating(m, name+".power_charging", b.PowerCharging, b.BinCharge, 0, p.MaxPower)
	AddCommitmentGating(m, name+".power_discharging", b.PowerDischarging, b.BinDischarge, 0, p.MaxPower)
	AddExclusivity(m, name, b.BinCharge, b.BinDischarge, plant.EQ)

	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s.balance[%d]", name, t), plant.EQ, 0, map[int]float64{
			b.PowerBalance.Ref(t):     1,
			b.PowerDischarging.Ref(t): -1,
			b.PowerCharging.Ref(t):    1,
		})
	}

	// content(1) = initial - balance(1); content(t) = content(t-1) - balance(t)
	AddStorageRecurrence(m, name+".power_content", b.PowerContent, b.PowerBalance, p.InitialContent, 0, 1, -1)

	if p.HasFinalContent {
		m.AddRow(name+".final_content", plant.EQ, p.FinalContent, map[int]float64{
			b.PowerContent.Ref(m.Hours): 1,
		})
	}

	// Switch detection: switch_state(t) = delta_mode(t) - delta_mode(t-1),
	// where delta_mode = bin_charge - bin_discharge. No prior hour at t=1,
	// so bin_switch(1) is fixed to 0 (no transition observable).
	b.BinSwitch.Fix(1, 0)
	b.AuxRemainder.Fix(1, 2)
	b.AuxQuotient.Fix(1, 0)

	for t := 2; t <= m.Hours; t++ {
		switchStateCoef := map[int]float64{
			b.BinCharge.Ref(t):        1,
			b.BinDischarge.Ref(t):     -1,
			b.BinCharge.Ref(t - 1):    -1,
			b.BinDischarge.Ref(t - 1): 1,
		}
		// switch_state(t) >= -2*bin_switch(t)  =>  switch_state + 2*bin_switch >= 0
		geRow := map[int]float64{}
		for k, v := range switchStateCoef {
			geRow[k] = v
		}
		geRow[b.BinSwitch.Ref(t)] += 2
		m.AddRow(fmt.Sprintf("%s.switch_ge[%d]", name, t), plant.GE, 0, geRow)

		// 2*bin_switch(t) >= switch_state(t)  =>  2*bin_switch - switch_state >= 0
		leRow := map[int]float64{}
		for k, v := range switchStateCoef {
			leRow[k] = -v
		}
		leRow[b.BinSwitch.Ref(t)] += 2
		m.AddRow(fmt.Sprintf("%s.switch_le[%d]", name, t), plant.GE, 0, leRow)

		// switch_state(t) + 2 = 4*aux_quotient(t) + aux_remainder(t)
		moduloRow := map[int]float64{
			b.AuxQuotient.Ref(t):  -4,
			b.AuxRemainder.Ref(t): -1,
		}
		for k, v := range switchStateCoef {
			moduloRow[k] += v
		}
		m.AddRow(fmt.Sprintf("%s.switch_modulo[%d]", name, t), plant.EQ, -2, moduloRow)

		// aux_remainder(t) * bin_switch(t) = 0, linearized (aux_remainder
		// bounded in [0,3], bin_switch binary):
		// aux_remainder(t) + 3*bin_switch(t) <= 3
		m.AddRow(fmt.Sprintf("%s.switch_product[%d]", name, t), plant.LE, 3, map[int]float64{
			b.AuxRemainder.Ref(t): 1,
			b.BinSwitch.Ref(t):    3,
		})
	}

	if p.CyclicBehaviour > 0 {
		b.buildCyclicWindow(m, p.CyclicBehaviour)
	}

	return b
}

func (b *Battery) buildCyclicWindow(m *plant.Model, c int) {
	b.CyclicSwitchBin = m.NewSeries(b.name+".cyclic_switch_bin", plant.Binary, 0, 1)
	for t := 1; t <= m.Hours; t++ {
		if (t-1)%c == 0 {
			b.CyclicSwitchBin.Fix(t, 0)
			continue
		}
		m.AddRow(fmt.Sprintf("%s.cyclic_switch_eq[%d]", b.name, t), plant.EQ, 0, map[int]float64{
			b.CyclicSwitchBin.Ref(t): 1,
			b.BinSwitch.Ref(t):       -1,
		})
	}
	for t := c; t <= m.Hours; t++ {
		coef := map[int]float64{}
		for j := t - c + 1; j <= t; j++ {
			coef[b.CyclicSwitchBin.Ref(j)] += 1
		}
		m.AddRow(fmt.Sprintf("%s.cyclic_window[%d]", b.name, t), plant.LE, 1, coef)
	}
}

func (b *Battery) Name() string { return b.name }

func (b *Battery) Ports() []carrier.Port {
	return []carrier.Port{
		carrier.NewPort(b.name, carrier.Power, carrier.Sink, b.PowerCharging),
		carrier.NewPort(b.name, carrier.Power, carrier.Source, b.PowerDischarging),
	}
}
