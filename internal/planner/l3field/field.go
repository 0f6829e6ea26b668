package l3field

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/fieldpilot/internal/planner/l2obstacles"
)

// Sample is the potential field for one tick. All slices have one entry per
// scan ray; Repulsive is zero outside the detection window.
type Sample struct {
	Repulsive  []float64
	Attractive []float64
	Total      []float64
}

// Composer builds the potential field.
type Composer struct {
	// Gamma weights the attraction toward the goal bearing.
	Gamma float64
}

// Compose returns the field over n rays for the given obstacles and goal
// bearing. front is the straight-ahead index and increment the angular step
// between rays.
func (c Composer) Compose(obstacles []l2obstacles.Obstacle, bearing float64, n, front int, increment float64, w l2obstacles.Window) Sample {
	s := Sample{
		Repulsive:  make([]float64, n),
		Attractive: make([]float64, n),
		Total:      make([]float64, n),
	}
	start, end := clamp(w, n)

	for _, o := range obstacles {
		if o.Sigma == 0 {
			continue
		}
		center := float64(o.CenterOffset) * increment
		twoSigmaSq := 2 * o.Sigma * o.Sigma
		for j := start; j < end; j++ {
			d := float64(j-front)*increment - center
			s.Repulsive[j] += o.Magnitude * math.Exp(-d*d/twoSigmaSq)
		}
	}

	for i := range s.Attractive {
		s.Attractive[i] = c.Gamma * math.Abs(bearing-float64(i-front)*increment)
	}

	floats.AddTo(s.Total, s.Repulsive, s.Attractive)
	return s
}

// GoalRay returns the index of the lowest total potential inside w. Ties go
// to the lowest index. It returns -1 when the window is empty.
func GoalRay(s Sample, w l2obstacles.Window) int {
	start, end := clamp(w, len(s.Total))
	if end <= start {
		return -1
	}
	return start + floats.MinIdx(s.Total[start:end])
}

// At returns the three field components at ray i.
func (s Sample) At(i int) (repulsive, attractive, total float64) {
	return s.Repulsive[i], s.Attractive[i], s.Total[i]
}

func clamp(w l2obstacles.Window, n int) (start, end int) {
	start, end = w.Start, w.End
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	return start, end
}
