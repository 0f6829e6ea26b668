package l2obstacles

// Window is a half-open index range [Start, End) of a scan.
type Window struct {
	Start int
	End   int
}

// WindowAround returns the window of halfWidth rays either side of front,
// clamped to a scan of n samples.
func WindowAround(front, halfWidth, n int) Window {
	w := Window{Start: front - halfWidth, End: front + halfWidth}
	if w.Start < 0 {
		w.Start = 0
	}
	if w.End > n {
		w.End = n
	}
	if w.End < w.Start {
		w.End = w.Start
	}
	return w
}

// Len returns the number of rays in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Contains reports whether index i lies inside the window.
func (w Window) Contains(i int) bool {
	return i >= w.Start && i < w.End
}
