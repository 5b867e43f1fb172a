// Package profile synthesizes a clear-sky PV capacity-factor profile from
// latitude/longitude (SPEC_FULL.md 4.L). Nothing in the assembly path calls
// it: a scenario whose config omits pv_profile gets an all-zero PV profile.
// Grounded on scheduler/mpc.go's
// estimateSolarPowerFromWeather solar-altitude calculation, retargeted
// from a weather-adjusted rolling forecast to a full-horizon clear-sky
// synthetic series.
package profile

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// SynthesizePV returns a 1-indexed, hours-long clear-sky PV capacity
// factor series in [0,1] starting at start, one value per hour, derived
// from the sun's altitude at lat/lon exactly as the teacher's solar
// estimate does (sin of altitude, clipped at the horizon), but without
// any weather/cloud adjustment since no forecast is available for an
// arbitrary historical or future dispatch horizon.
func SynthesizePV(lat, lon float64, start time.Time, hours int) []float64 {
	out := make([]float64, hours+1)
	for t := 1; t <= hours; t++ {
		ts := start.Add(time.Duration(t-1) * time.Hour)
		out[t] = clearSkyFactor(ts, lat, lon)
	}
	return out
}

func clearSkyFactor(ts time.Time, lat, lon float64) float64 {
	sunTimes := suncalc.GetTimes(ts, lat, lon)
	sunrise := sunTimes["sunrise"].Value
	sunset := sunTimes["sunset"].Value
	if ts.Before(sunrise) || ts.After(sunset) {
		return 0
	}
	pos := suncalc.GetPosition(ts, lat, lon)
	factor := math.Sin(pos.Altitude)
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		factor = 1
	}
	return factor
}
