package osc

import "math"

// Immediately is the time tag the engine treats as "now".
const Immediately uint64 = 0

// TimeTag converts seconds to 32.32 fixed point. Negative and NaN inputs map
// to Immediately; values past the representable range saturate.
func TimeTag(seconds float64) uint64 {
	if !(seconds > 0) {
		return Immediately
	}
	v := seconds * (1 << 32)
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

// Seconds converts a 32.32 fixed-point time tag to seconds.
func Seconds(tt uint64) float64 {
	return float64(tt) / (1 << 32)
}
