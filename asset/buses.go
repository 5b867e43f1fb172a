package asset

import (
	"fmt"
	"math"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// BusParams holds a carrier bus's supply/feed-in envelope (spec.md 4.B.8).
type BusParams struct {
	Carrier  carrier.Carrier
	MaxFlow  float64
	HasFeedin bool // false for buses that never export (e.g. natural_gas)
}

// Bus owns per-hour supply/feedin/balance variables for one carrier. For
// demand-terminated buses (heat, local_heat) the composer additionally
// pins its conservation row against an exogenous demand profile (see
// plant.NewDemandBus); the bus asset itself only owns supply/feedin and
// their net balance.
type CarrierBus struct {
	name    string
	params  BusParams
	Supply  *plant.VarSeries
	Feedin  *plant.VarSeries // nil when !HasFeedin
	Balance *plant.VarSeries
}

func NewCarrierBus(name string, m *plant.Model, p BusParams) *CarrierBus {
	b := &CarrierBus{name: name, params: p}
	b.Supply = m.NewSeries(name+".supply", plant.Continuous, 0, p.MaxFlow)
	b.Balance = m.NewSeries(name+".balance", plant.Continuous, math.Inf(-1), math.Inf(1))
	if p.HasFeedin {
		b.Feedin = m.NewSeries(name+".feedin", plant.Continuous, 0, p.MaxFlow)
	}
	for t := 1; t <= m.Hours; t++ {
		coef := map[int]float64{
			b.Balance.Ref(t): 1,
			b.Supply.Ref(t):  -1,
		}
		if b.Feedin != nil {
			coef[b.Feedin.Ref(t)] = 1
		}
		m.AddRow(fmt.Sprintf("%s.balance_def[%d]", name, t), plant.EQ, 0, coef)
	}
	return b
}

func (b *CarrierBus) Name() string { return b.name }

// Ports exposes supply as a source (external import) and feedin, if
// present, as a sink (export) on the bus's own carrier.
func (b *CarrierBus) Ports() []carrier.Port {
	ports := []carrier.Port{carrier.NewPort(b.name, b.params.Carrier, carrier.Source, b.Supply)}
	if b.Feedin != nil {
		ports = append(ports, carrier.NewPort(b.name, b.params.Carrier, carrier.Sink, b.Feedin))
	}
	return ports
}

// HeatLocalCouplingParams wires the heat bus's two additional coupled
// inflows (spec.md 4.B.8): the stratified store's nw_excess_heat outflow,
// and a district<->local transfer, each individually big-M gated and
// mutually exclusive per hour.
type HeatLocalCouplingParams struct {
	MExcess float64 // 10 MW
	MFW2NW  float64 // 10 MW
	MMin    float64 // 0.5 MW
}

// DefaultHeatLocalCoupling returns the big-M parameters spec.md 4.B.8
// specifies.
func DefaultHeatLocalCoupling() HeatLocalCouplingParams {
	return HeatLocalCouplingParams{MExcess: 10, MFW2NW: 10, MMin: 0.5}
}

// HeatLocalCoupling owns the exclusive-transfer binaries gating the
// stratified store's district-bound outflow against a new district<->local
// transfer variable.
type HeatLocalCoupling struct {
	name       string
	ExcessInflow *plant.VarSeries // mirrors the stratified store's Q_Z1_FW
	FWtoNW       *plant.VarSeries // district -> local heat transfer (fw_heat, spec.md line 57)
	binExcess    *plant.VarSeries
	binFW2NW     *plant.VarSeries
}

// NewHeatLocalCoupling declares the coupling's variables and constraints,
// tying ExcessInflow to the stratified store's district outflow via an
// equality so both names are traceable in the result frame.
func NewHeatLocalCoupling(name string, m *plant.Model, p HeatLocalCouplingParams, stratifiedQZ1FW *plant.VarSeries) *HeatLocalCoupling {
	c := &HeatLocalCoupling{name: name}
	c.ExcessInflow = m.NewSeries(name+".excess_inflow", plant.Continuous, 0, p.MExcess)
	c.FWtoNW = m.NewSeries(name+".fw_to_nw", plant.Continuous, 0, p.MFW2NW)
	c.binExcess = m.NewSeries(name+".bin_excess", plant.Binary, 0, 1)
	c.binFW2NW = m.NewSeries(name+".bin_fw2nw", plant.Binary, 0, 1)

	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s.excess_alias[%d]", name, t), plant.EQ, 0, map[int]float64{
			c.ExcessInflow.Ref(t):   1,
			stratifiedQZ1FW.Ref(t): -1,
		})
		m.AddRow(fmt.Sprintf("%s.excess_hi[%d]", name, t), plant.LE, 0, map[int]float64{
			c.ExcessInflow.Ref(t): 1,
			c.binExcess.Ref(t):    -p.MExcess,
		})
		m.AddRow(fmt.Sprintf("%s.excess_lo[%d]", name, t), plant.GE, 0, map[int]float64{
			c.ExcessInflow.Ref(t): 1,
			c.binExcess.Ref(t):    -p.MMin,
		})
		m.AddRow(fmt.Sprintf("%s.fw2nw_hi[%d]", name, t), plant.LE, 0, map[int]float64{
			c.FWtoNW.Ref(t):    1,
			c.binFW2NW.Ref(t): -p.MFW2NW,
		})
		m.AddRow(fmt.Sprintf("%s.fw2nw_lo[%d]", name, t), plant.GE, 0, map[int]float64{
			c.FWtoNW.Ref(t):    1,
			c.binFW2NW.Ref(t): -p.MMin,
		})
		m.AddRow(fmt.Sprintf("%s.exclusive[%d]", name, t), plant.LE, 1, map[int]float64{
			c.binExcess.Ref(t): 1,
			c.binFW2NW.Ref(t):  1,
		})
	}
	return c
}

func (c *HeatLocalCoupling) Name() string { return c.name }

// Ports returns the transfer's own ports: ExcessInflow, the copy of the
// stratified store's Q_Z1_FW, as a source on heat (the store's own port for
// that flow is not connected, so it is counted once), and FWtoNW as district
// heat drawn from the heat bus (sink on heat) and imported into the local
// grid (source on local_heat).
func (c *HeatLocalCoupling) Ports() []carrier.Port {
	return []carrier.Port{
		carrier.NewPort(c.name, carrier.Heat, carrier.Source, c.ExcessInflow),
		carrier.NewPort(c.name, carrier.Heat, carrier.Sink, c.FWtoNW),
		carrier.NewPort(c.name, carrier.LocalHeat, carrier.Source, c.FWtoNW),
	}
}

// AnnualLocalShareCovenant adds the local-heat bus's annual covenant
// (spec.md 4.B.8): sum_t districtInflow(t) <= 0.20 * sum_t demand(t).
func AnnualLocalShareCovenant(m *plant.Model, name string, districtInflow *plant.VarSeries, demand carrier.Variable) {
	coef := map[int]float64{}
	var demandTotal float64
	for t := 1; t <= m.Hours; t++ {
		coef[districtInflow.Ref(t)] += 1
		demandTotal += demand.At(t)
	}
	m.AddRow(name+".annual_local_share", plant.LE, 0.20*demandTotal, coef)
}
