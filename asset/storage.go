package asset

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// StorageParams holds a single-layer buffer's envelope (spec.md 4.B.6).
type StorageParams struct {
	Carrier                carrier.Carrier
	MaxFlow                float64
	MinContent, MaxContent float64
	InitialContent         float64
	KLoss                  float64 // 0 for heat/hydrogen storages; configurable for the geothermal store
	// ForceActiveEveryHour switches the exclusivity constraint from the
	// default "<=1" (idle allowed) to "=1" (spec.md 9's open question ii).
	ForceActiveEveryHour bool
	// RelaxExclusivity drops the mutual-exclusivity constraint entirely
	// (the geothermal store may be configured this way).
	RelaxExclusivity bool
}

// Storage is a single-layer lossless (or, for the geothermal store,
// lossy) buffer: heat storage, hydrogen storage, and the geothermal store
// all share this skeleton, differing only in carrier and in KLoss/
// exclusivity configuration.
type Storage struct {
	name   string
	params StorageParams

	Charging    *plant.VarSeries
	Discharging *plant.VarSeries
	Balance     *plant.VarSeries
	Content     *plant.VarSeries
	BinCharge   *plant.VarSeries
	BinDischarge *plant.VarSeries
}

// NewStorage declares a generic storage's variables and constraints.
func NewStorage(name string, m *plant.Model, p StorageParams) *Storage {
	s := &Storage{name: name, params: p}

	s.Charging = m.NewSeries(name+".charging", plant.Continuous, 0, p.MaxFlow)
	s.Discharging = m.NewSeries(name+".discharging", plant.Continuous, 0, p.MaxFlow)
	s.Balance = m.NewSeries(name+".balance", plant.Continuous, -p.MaxFlow, p.MaxFlow)
	s.Content = m.NewSeries(name+".content", plant.Continuous, p.MinContent, p.MaxContent)
	s.BinCharge = m.NewSeries(name+".bin_charge", plant.Binary, 0, 1)
	s.BinDischarge = m.NewSeries(name+".bin_discharge", plant.Binary, 0, 1)

	AddCommitmentGating(m, name+".charging", s.Charging, s.BinCharge, 0, p.MaxFlow)
	AddCommitmentGating(m, name+".discharging", s.Discharging, s.BinDischarge, 0, p.MaxFlow)

	if !p.RelaxExclusivity {
		op := plant.LE
		if p.ForceActiveEveryHour {
			op = plant.EQ
		}
		AddExclusivity(m, name, s.BinCharge, s.BinDischarge, op)
	}

	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s.balance_def[%d]", name, t), plant.EQ, 0, map[int]float64{
			s.Balance.Ref(t):     1,
			s.Discharging.Ref(t): -1,
			s.Charging.Ref(t):    1,
		})
	}

	AddStorageRecurrence(m, name+".content", s.Content, s.Balance, p.InitialContent, p.KLoss, 1, -1)

	return s
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) Ports() []carrier.Port {
	return []carrier.Port{
		carrier.NewPort(s.name, s.params.Carrier, carrier.Sink, s.Charging),
		carrier.NewPort(s.name, s.params.Carrier, carrier.Source, s.Discharging),
	}
}

// NewHeatStorage is a Storage fixed to the heat carrier with no losses,
// matching spec.md 4.B.6's "lossless buffer" contract exactly.
func NewHeatStorage(name string, m *plant.Model, p StorageParams) *Storage {
	p.Carrier = carrier.Heat
	p.KLoss = 0
	return NewStorage(name, m, p)
}

// NewHydrogenStorage is a Storage fixed to the hydrogen carrier with no
// losses.
func NewHydrogenStorage(name string, m *plant.Model, p StorageParams) *Storage {
	p.Carrier = carrier.Hydrogen
	p.KLoss = 0
	return NewStorage(name, m, p)
}

// NewGeothermalStore is a Storage fixed to the waste_heat carrier; unlike
// the heat and hydrogen storages it may carry an explicit KLoss and may
// relax mutual exclusivity (spec.md 4.B.6, 9).
func NewGeothermalStore(name string, m *plant.Model, p StorageParams) *Storage {
	p.Carrier = carrier.WasteHeat
	return NewStorage(name, m, p)
}
