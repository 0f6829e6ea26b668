package waypoints

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Pose is the vehicle position and yaw in the map frame.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// Point returns the position as an orb.Point.
func (p Pose) Point() orb.Point {
	return orb.Point{p.X, p.Y}
}

// HeadingFromQuaternion extracts the yaw angle of a unit quaternion.
func HeadingFromQuaternion(qx, qy, qz, qw float64) float64 {
	sinyCosp := 2 * (qw*qz + qx*qy)
	cosyCosp := 1 - 2*(qy*qy+qz*qz)
	return math.Atan2(sinyCosp, cosyCosp)
}

// Target is the lookahead goal in the vehicle frame.
type Target struct {
	Index int
	Point orb.Point
	// Range is the straight-line distance to the goal.
	Range float64
	// Bearing is the goal direction relative to the heading, in (-pi, pi],
	// positive to the left.
	Bearing   float64
	Lookahead float64
	// Wrapped reports that the current waypoint passed the end of the loop
	// during this update.
	Wrapped bool
}

// Tracker follows a Path. Current only moves forward along the loop.
type Tracker struct {
	Path Path
	// Base and Gain set the lookahead: Base + Gain*speed.
	Base float64
	Gain float64

	// Current is the index of the nearest waypoint found so far.
	Current int
	// Nearest is the distance to Current at the last update.
	Nearest float64
}

// NewTracker returns a tracker positioned at the first waypoint.
func NewTracker(path Path, base, gain float64) *Tracker {
	return &Tracker{Path: path, Base: base, Gain: gain}
}

// Lookahead returns the lookahead distance at speed. Negative speeds are
// treated as standing still.
func (t *Tracker) Lookahead(speed float64) float64 {
	return t.Base + t.Gain*math.Max(speed, 0)
}

// Update advances the nearest waypoint for pose and returns the goal.
func (t *Tracker) Update(pose Pose, speed float64) Target {
	n := t.Path.Len()
	look := t.Lookahead(speed)
	here := pose.Point()
	prev := t.Current
	if n == 0 {
		return Target{Lookahead: look}
	}

	// Walk forward from the current waypoint, adopting anything strictly
	// closer, until the distance has clearly grown or the loop is done.
	t.Nearest = planar.Distance(t.Path.At(t.Current), here)
	for i := (t.Current + 1) % n; i != t.Current; i = (i + 1) % n {
		d := planar.Distance(t.Path.At(i), here)
		if d < t.Nearest {
			t.Nearest = d
			t.Current = i
			continue
		}
		if d > t.Nearest+look*1.2 {
			break
		}
	}

	goal := t.Current
	for k := 0; k < n; k++ {
		i := (t.Current + k) % n
		if planar.Distance(t.Path.At(i), here) > look {
			goal = i
			break
		}
	}

	pt := t.Path.At(goal)
	rng, bearing := ToVehicleFrame(pose, pt)
	return Target{
		Index:     goal,
		Point:     pt,
		Range:     rng,
		Bearing:   bearing,
		Lookahead: look,
		Wrapped:   t.Current < prev,
	}
}

// ToVehicleFrame returns the range and bearing of pt as seen from pose.
// The bearing is zero straight ahead and positive to the left.
func ToVehicleFrame(pose Pose, pt orb.Point) (rng, bearing float64) {
	theta := math.Pi/2 - pose.Heading
	dx := pt[0] - pose.X
	dy := pt[1] - pose.Y
	x := dx*math.Cos(theta) - dy*math.Sin(theta)
	y := dx*math.Sin(theta) + dy*math.Cos(theta)
	return math.Hypot(x, y), NormalizeAngle(math.Atan2(y, x) - math.Pi/2)
}

// NormalizeAngle wraps a to (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
