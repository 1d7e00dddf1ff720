package motorseq

import "math"

// ToCounts converts a speed in RPM to the raw counts written to the motor
// firmware. scale is RPM per count. Counts are integral, so the result is
// rounded to the nearest count (ties away from zero).
//
// Callers validate scale > 0; this is a plain conversion with no checks.
func ToCounts(rpm, scale float64) int32 {
	return int32(math.Round(rpm / scale))
}

// ToRPM converts raw counts read from the motor firmware back to RPM.
func ToRPM(counts int32, scale float64) float64 {
	return float64(counts) * scale
}
