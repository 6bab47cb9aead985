// Package irrigation implements the irrigation decision engine: reference
// evapotranspiration, the composite water stress index, irrigation history
// patterns, and the priority-ordered decision table.
//
// Everything here is pure computation. Fetching inputs is the caller's job
// (see internal/advisor).
package irrigation

import "math"

// MaxET0 caps reference evapotranspiration in mm/day.
const MaxET0 = 15.0

// ET0 estimates reference evapotranspiration in mm/day from air temperature
// (°C), relative humidity (%) and wind speed (m/s). Results are clamped to
// [0, MaxET0]; out-of-range inputs are never rejected.
func ET0(tempC, humidityPct, windMS float64) float64 {
	tempFactor := (tempC + 17.8) / 100
	humidityFactor := (100 - humidityPct) / 100
	windFactor := 1 + windMS*0.1

	et := tempFactor * humidityFactor * windFactor * 3.5
	if math.IsNaN(et) {
		return 0
	}
	return math.Max(0, math.Min(et, MaxET0))
}
