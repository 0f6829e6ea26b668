package l2obstacles

import (
	"fmt"
	"math"

	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
)

// MagnitudeLaw selects how a cluster's repulsive magnitude is derived.
type MagnitudeLaw int

const (
	// LawDepth scales with how far the cluster sits inside the threshold.
	LawDepth MagnitudeLaw = iota
	// LawSpread scales with the range spread inside the cluster.
	LawSpread
)

func (l MagnitudeLaw) String() string {
	switch l {
	case LawDepth:
		return "depth"
	case LawSpread:
		return "spread"
	default:
		return fmt.Sprintf("MagnitudeLaw(%d)", int(l))
	}
}

// ParseMagnitudeLaw maps a configuration name to a MagnitudeLaw.
func ParseMagnitudeLaw(s string) (MagnitudeLaw, error) {
	switch s {
	case "", "depth":
		return LawDepth, nil
	case "spread":
		return LawSpread, nil
	}
	return LawDepth, fmt.Errorf("unknown magnitude law %q", s)
}

// Obstacle is one contiguous run of near samples.
type Obstacle struct {
	// CenterOffset is the run midpoint in rays relative to the front index.
	CenterOffset int
	// Sigma is the angular spread in radians, inflated by the vehicle half-width.
	Sigma float64
	// Magnitude is the peak of the repulsive Gaussian; never negative.
	Magnitude float64

	MeanRange float64
	MaxRange  float64
	// Width is the angular extent of the run in radians.
	Width float64
	Start int
	End   int // exclusive
}

// Segmenter splits a conditioned scan into obstacles.
type Segmenter struct {
	Threshold float64
	HalfWidth float64
	Law       MagnitudeLaw
	Gain      float64
}

// DefaultSegmenter returns the segmenter with the tuned defaults.
func DefaultSegmenter() Segmenter {
	return Segmenter{Threshold: 3.0, HalfWidth: 0.125, Law: LawDepth, Gain: math.Exp(0.25)}
}

// Segment returns one obstacle per maximal run of samples below Threshold
// inside w, ordered left to right by index. An empty result means the
// window is open.
func (s Segmenter) Segment(filtered l1scan.RangeScan, w Window) []Obstacle {
	ranges := filtered.Ranges
	start, end := clampWindow(w, len(ranges))
	front := filtered.FrontIndex()

	var obstacles []Obstacle
	for i := start; i < end; {
		if !(ranges[i] < s.Threshold) {
			i++
			continue
		}
		runStart := i
		sum := 0.0
		maxRange := ranges[i]
		for i < end && ranges[i] < s.Threshold {
			sum += ranges[i]
			if ranges[i] > maxRange {
				maxRange = ranges[i]
			}
			i++
		}
		obstacles = append(obstacles, s.summarise(runStart, i, sum, maxRange, front, filtered.AngleIncrement))
	}
	return obstacles
}

func (s Segmenter) summarise(start, end int, sum, maxRange float64, front int, increment float64) Obstacle {
	length := end - start
	mean := sum / float64(length)
	width := float64(length) * increment
	return Obstacle{
		CenterOffset: start + length/2 - front,
		Sigma:        math.Atan2(mean*math.Tan(width/2)+s.HalfWidth, mean),
		Magnitude:    s.magnitude(mean, maxRange),
		MeanRange:    mean,
		MaxRange:     maxRange,
		Width:        width,
		Start:        start,
		End:          end,
	}
}

func (s Segmenter) magnitude(mean, maxRange float64) float64 {
	var m float64
	switch s.Law {
	case LawSpread:
		m = (maxRange - mean) * s.Gain
	default:
		m = (s.Threshold - mean) * s.Gain
	}
	if m < 0 {
		return 0
	}
	return m
}

func clampWindow(w Window, n int) (start, end int) {
	start, end = w.Start, w.End
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return start, end
}
