package service

import (
	"math"

	cronus "github.com/E3dvis/cronustraining"
)

// ResolveRange clamps the requested test interval into the hardware
// interval. Unset bounds default to the device bounds. If clamping
// collapses the interval (min >= max), the full device interval is used
// instead; degenerate input is corrected silently, never rejected.
// Returns nil when the device range is unknown: a run must not start.
func ResolveRange(reqMin, reqMax *float64, dev *cronus.DeviceRange) *cronus.ResolvedRange {
	if dev == nil {
		return nil
	}
	lo, hi := dev.Min, dev.Max
	if reqMin != nil {
		lo = math.Max(*reqMin, dev.Min)
	}
	if reqMax != nil {
		hi = math.Min(*reqMax, dev.Max)
	}
	if lo >= hi {
		lo, hi = dev.Min, dev.Max
	}
	return &cronus.ResolvedRange{Min: lo, Max: hi}
}

// clampWavelength bounds wl into the hardware interval. Applied
// immediately before every dispatch as a final safety bound, even when
// the resolved range should already guarantee it.
func clampWavelength(wl float64, dev cronus.DeviceRange) float64 {
	return math.Min(math.Max(wl, dev.Min), dev.Max)
}

// roundWavelength rounds to one decimal place, the device's command
// granularity.
func roundWavelength(wl float64) float64 {
	return math.Round(wl*10) / 10
}
