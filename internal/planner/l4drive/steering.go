package l4drive

import "math"

// Command is the drive instruction emitted once per tick. Acceleration and
// Jerk are always zero; the vehicle's own controller shapes the response.
type Command struct {
	SteeringAngle float64 `json:"steering_angle"`
	Speed         float64 `json:"speed"`
	Acceleration  float64 `json:"acceleration"`
	Jerk          float64 `json:"jerk"`
}

// Steering converts a goal offset into a front-wheel angle.
type Steering struct {
	Wheelbase float64
	// Exponent is applied to the lookahead in the turning radius.
	Exponent float64
	// Epsilon replaces an exactly-zero heading error so the radius stays finite.
	Epsilon float64
	// SpikeCap and JumpCap gate the spike hold: an angle beyond SpikeCap that
	// also differs from the previous one by more than JumpCap is rejected.
	SpikeCap float64
	JumpCap  float64
}

// DefaultSteering returns the steering law with the tuned defaults.
func DefaultSteering() Steering {
	return Steering{Wheelbase: 0.325, Exponent: 1.25, Epsilon: 0.001, SpikeCap: 0.5, JumpCap: 0.5}
}

// Raw returns the unheld steering angle for a goal goalOffset rays from the
// front ray.
func (s Steering) Raw(goalOffset int, increment, lookahead float64) float64 {
	theta := float64(goalOffset) * increment
	if theta == 0 {
		theta = s.Epsilon
	}
	radius := math.Pow(lookahead, s.Exponent) / (2 * math.Sin(theta))
	return math.Atan(s.Wheelbase / radius)
}

// Hold rejects raw when it is beyond SpikeCap and jumps more than JumpCap
// from previous. held reports that previous was returned instead.
func (s Steering) Hold(raw, previous float64) (angle float64, held bool) {
	if math.Abs(raw) > s.SpikeCap && math.Abs(previous-raw) > s.JumpCap {
		return previous, true
	}
	return raw, false
}

// Angle is Raw followed by Hold against previous.
func (s Steering) Angle(goalOffset int, increment, lookahead, previous float64) (angle float64, held bool) {
	return s.Hold(s.Raw(goalOffset, increment, lookahead), previous)
}
