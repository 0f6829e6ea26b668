package l1scan

import "math"

// ForwardClearance returns the mean of the usable samples within halfWidth
// rays of the front index. ok is false when the window holds no usable
// sample, which callers treat as a clearance read failure.
func ForwardClearance(filtered RangeScan, halfWidth int) (clearance float64, ok bool) {
	n := filtered.Len()
	if n == 0 {
		return 0, false
	}
	front := filtered.FrontIndex()
	lo := front - halfWidth
	if lo < 0 {
		lo = 0
	}
	hi := front + halfWidth + 1
	if hi > n {
		hi = n
	}

	sum := 0.0
	count := 0
	for _, r := range filtered.Ranges[lo:hi] {
		if r > 0 && !math.IsInf(r, 0) && !math.IsNaN(r) {
			sum += r
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
