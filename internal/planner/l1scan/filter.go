package l1scan

import (
	"errors"
)

// ErrNoValidSamples is returned when a scan has no usable reading at all.
var ErrNoValidSamples = errors.New("scan has no valid samples")

// Filter conditions a raw scan for segmentation.
type Filter struct {
	// Scale is the ratio at which a neighbour counts as disproportionately
	// farther and triggers edge smoothing.
	Scale float64
	// HalfWidth is the lateral span, in metres, to clamp behind a near edge.
	HalfWidth float64
	// Neighbors is how many samples on each side feed the gap fill mean.
	Neighbors int
}

// DefaultFilter returns the filter with the tuned defaults.
func DefaultFilter() Filter {
	return Filter{Scale: 1.1, HalfWidth: 0.25, Neighbors: 20}
}

// Apply returns a conditioned copy of raw. raw itself is never modified.
//
// Invalid readings (zero, negative, NaN or +Inf) are replaced by the mean of
// the valid readings among Neighbors samples on each side. The pass runs left
// to right, so a reading repaired earlier counts as valid for later ones.
// A leading reading with no valid neighbour takes the first valid value to
// its right.
//
// Edge smoothing then walks each adjacent pair. When one side is more than
// Scale times farther than the other, the farther samples are pulled down to
// the near range for as many rays as HalfWidth spans at that range, stopping
// at the first sample that is not farther.
func (f Filter) Apply(raw RangeScan) (RangeScan, error) {
	out := raw.Clone()
	n := len(raw.Ranges)
	if n == 0 {
		return out, nil
	}

	origin := make([]float64, n)
	copy(origin, raw.Ranges)
	if err := f.fillGaps(origin); err != nil {
		return RangeScan{}, err
	}
	copy(out.Ranges, origin)
	f.smoothEdges(origin, out.Ranges, raw.AngleIncrement)

	return out, nil
}

func (f Filter) fillGaps(origin []float64) error {
	n := len(origin)
	firstValid := -1
	for i, r := range origin {
		if valid(r) {
			firstValid = i
			break
		}
	}
	if firstValid < 0 {
		return ErrNoValidSamples
	}

	neighbors := f.Neighbors
	if neighbors < 1 {
		neighbors = 1
	}

	for i := 0; i < n; i++ {
		if valid(origin[i]) {
			continue
		}
		sum := 0.0
		count := 0
		for j := 1; j <= neighbors; j++ {
			if i-j >= 0 && valid(origin[i-j]) {
				sum += origin[i-j]
				count++
			}
			if i+j < n && valid(origin[i+j]) {
				sum += origin[i+j]
				count++
			}
		}
		if count > 0 {
			origin[i] = sum / float64(count)
			continue
		}
		// Everything left of i is repaired by now, so an empty
		// neighbourhood only happens before the first valid reading.
		origin[i] = origin[firstValid]
	}
	return nil
}

func (f Filter) smoothEdges(origin, filtered []float64, increment float64) {
	n := len(origin)
	if increment <= 0 {
		return
	}
	for i := 0; i < n-1; i++ {
		if origin[i]*f.Scale < filtered[i+1] {
			near := origin[i]
			span := f.HalfWidth / (near * increment)
			for j := 1; float64(j) < span+1; j++ {
				if i+j >= n || filtered[i+j] <= near {
					break
				}
				filtered[i+j] = near
			}
		} else if filtered[i] > origin[i+1]*f.Scale {
			near := origin[i+1]
			span := f.HalfWidth / (near * increment)
			for j := 0; float64(j) < span+1; j++ {
				if i-j <= 0 || filtered[i-j] <= near {
					break
				}
				filtered[i-j] = near
			}
		}
	}
}
