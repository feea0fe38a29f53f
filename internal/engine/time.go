package engine

import "github.com/roach88/synthctl/internal/osc"

// Time is an engine timestamp in seconds.
type Time float64

// Immediately schedules a bundle for the next processing block.
const Immediately Time = 0

// timeTag converts t to the 32.32 fixed-point wire representation.
func (t Time) timeTag() uint64 {
	return osc.TimeTag(float64(t))
}
