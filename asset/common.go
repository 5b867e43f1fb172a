// Package asset provides the composable library of sub-model builders for
// every physical unit in the plant: cogeneration units, the two-stage heat
// pump cascade, PV, solar-thermal, the battery, the single-layer storages,
// the stratified thermal store, and the carrier buses. Every builder shares
// the same contract: declare a stable set of ports with documented carriers
// and directions, declare only non-negative variables over the time set
// unless stated otherwise, emit piecewise-linear affine constraints only,
// and refuse unrecognized option keys.
package asset

import (
	"fmt"

	"github.com/devskill-org/plant-dispatch/carrier"
	"github.com/devskill-org/plant-dispatch/plant"
)

// Asset is the contract every sub-model builder satisfies once attached to
// a plant.Model: a stable name and the set of ports it exposes for the bus
// composer to connect.
type Asset interface {
	Name() string
	Ports() []carrier.Port
}

// UnknownOptionError is returned when an asset constructor is given an
// option key outside its documented whitelist.
type UnknownOptionError struct {
	Asset string
	Key   string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("asset %q: unrecognized option %q", e.Asset, e.Key)
}

// CheckOptions validates that every key in got appears in allowed.
func CheckOptions(assetName string, got map[string]struct{}, allowed ...string) error {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		allow[a] = struct{}{}
	}
	for k := range got {
		if _, ok := allow[k]; !ok {
			return &UnknownOptionError{Asset: assetName, Key: k}
		}
	}
	return nil
}

// ChordCoefficients computes the two-point affine (chord) map coefficients
// a, b such that q = a*power + b*bin reproduces q(power_min) = q_min*bin
// and q(power_max) = q_max*bin, per spec.md 4.B.1:
//
//	a = (q_max - q_min) / (power_max - power_min)
//	b = q_max - a*power_max
func ChordCoefficients(powerMin, powerMax, qMin, qMax float64) (a, b float64) {
	a = (qMax - qMin) / (powerMax - powerMin)
	b = qMax - a*powerMax
	return a, b
}

// AddChordConstraint adds, for every hour, the equality
// q(t) - a*power(t) - b*bin(t) = 0, scaled by an optional multiplier
// (used by the CHP's hydrogen-admixture CO2 coupling, which scales the
// unconditional chord by (1-f)).
func AddChordConstraint(m *plant.Model, name string, q, power, bin *plant.VarSeries, a, b, scale float64) {
	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s_chord[%d]", name, t), plant.EQ, 0, map[int]float64{
			q.Ref(t):     1,
			power.Ref(t): -a * scale,
			bin.Ref(t):   -b * scale,
		})
	}
}

// AddCommitmentGating adds the big-M commitment pattern
// min*bin(t) <= y(t) <= max*bin(t) for every hour, so bin=0 forces y=0 and
// bin=1 bounds y within [min,max].
func AddCommitmentGating(m *plant.Model, name string, y, bin *plant.VarSeries, min, max float64) {
	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s_gate_lo[%d]", name, t), plant.GE, 0, map[int]float64{
			y.Ref(t):   1,
			bin.Ref(t): -min,
		})
		m.AddRow(fmt.Sprintf("%s_gate_hi[%d]", name, t), plant.LE, 0, map[int]float64{
			y.Ref(t):   1,
			bin.Ref(t): -max,
		})
	}
}

// AddExclusivity adds, for every hour, binA(t) + binB(t) Op 1 — equality
// forces exactly one of the two modes active every hour (spec.md's
// battery), while LE allows both to be zero (idle; spec.md's heat/
// hydrogen/geothermal storages by default).
func AddExclusivity(m *plant.Model, name string, binA, binB *plant.VarSeries, op plant.Op) {
	for t := 1; t <= m.Hours; t++ {
		m.AddRow(fmt.Sprintf("%s_exclusive[%d]", name, t), op, 1, map[int]float64{
			binA.Ref(t): 1,
			binB.Ref(t): 1,
		})
	}
}

// AddStorageRecurrence adds the lossy content recurrence spec.md 3 and 8
// specify for every storage-like asset:
//
//	content(1) = initial + netFlowCoef*netFlow(1)
//	content(t) = (1-kLoss)*content(t-1) + netFlowCoef*netFlow(t)*dt   for t > 1
//
// The battery and the single-layer buffers both define netFlow as
// discharging-charging and pass netFlowCoef=-1, so content falls on net
// discharge.
func AddStorageRecurrence(m *plant.Model, name string, content, netFlow *plant.VarSeries, initial, kLoss, dt, netFlowCoef float64) {
	for t := 1; t <= m.Hours; t++ {
		if t == 1 {
			m.AddRow(fmt.Sprintf("%s_content[%d]", name, t), plant.EQ, initial, map[int]float64{
				content.Ref(t):  1,
				netFlow.Ref(t): -netFlowCoef,
			})
			continue
		}
		m.AddRow(fmt.Sprintf("%s_content[%d]", name, t), plant.EQ, 0, map[int]float64{
			content.Ref(t):      1,
			content.Ref(t - 1):  -(1 - kLoss),
			netFlow.Ref(t):      -netFlowCoef * dt,
		})
	}
}

// fixSeries pins every hour of a VarSeries to the corresponding value of an
// exogenous profile, used by price-taking assets (PV, solar-thermal) whose
// output is fully determined by an input series.
func fixSeries(series *plant.VarSeries, profile carrier.Variable, scale float64) {
	n := series.Len()
	for t := 1; t <= n; t++ {
		series.Fix(t, profile.At(t)*scale)
	}
}
