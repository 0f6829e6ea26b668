package l1scan

import (
	"math"
	"time"
)

// RangeScan is one planar sweep of range samples. Index 0 is the rightmost
// ray; indices grow counter-clockwise so a positive offset from the front
// index points to the vehicle's left.
type RangeScan struct {
	Seq            uint32
	Stamp          time.Time
	AngleMin       float64
	AngleMax       float64
	AngleIncrement float64
	RangeMin       float64
	RangeMax       float64
	Ranges         []float64
}

// Len returns the number of samples.
func (s RangeScan) Len() int {
	return len(s.Ranges)
}

// FrontIndex returns the index of the ray pointing straight ahead.
func (s RangeScan) FrontIndex() int {
	if len(s.Ranges) == 0 {
		return 0
	}
	return (len(s.Ranges) - 1) / 2
}

// Clone returns a deep copy so the receiver can be mutated independently.
func (s RangeScan) Clone() RangeScan {
	out := s
	if s.Ranges != nil {
		out.Ranges = make([]float64, len(s.Ranges))
		copy(out.Ranges, s.Ranges)
	}
	return out
}

// valid reports whether r is a usable range reading.
func valid(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}
