package l4drive

import "math"

// Cruise picks a target speed from forward clearance.
type Cruise struct {
	Mu      float64
	Gravity float64
	// Wheelbase doubles as the acceleration blend factor below HighSpeed.
	Wheelbase float64
	MaxSpeed  float64
	MinSpeed  float64
	// Above HighSpeed the clearance is shortened by ReactionGain*speed.
	HighSpeed    float64
	ReactionGain float64
	// Margin is subtracted from the friction-limited speed.
	Margin           float64
	DecelGain        float64
	DefaultClearance float64
}

// DefaultCruise returns the speed policy with the tuned defaults.
func DefaultCruise() Cruise {
	return Cruise{
		Mu:               0.523,
		Gravity:          9.81,
		Wheelbase:        0.325,
		MaxSpeed:         20,
		MinSpeed:         1.5,
		HighSpeed:        10,
		ReactionGain:     0.7,
		Margin:           2,
		DecelGain:        0.2,
		DefaultClearance: 1.0,
	}
}

// Limit returns the friction-limited speed for clearance, capped at MaxSpeed.
func (c Cruise) Limit(clearance float64) float64 {
	if clearance < 0 {
		clearance = 0
	}
	limit := math.Sqrt(2*c.Mu*c.Gravity*clearance) - c.Margin
	if limit > c.MaxSpeed {
		limit = c.MaxSpeed
	}
	return limit
}

// Target returns the commanded speed. ok false means the clearance could not
// be read and DefaultClearance is used. The result is always within
// [MinSpeed, MaxSpeed].
func (c Cruise) Target(clearance float64, ok bool, current float64) float64 {
	if !ok {
		clearance = c.DefaultClearance
	}
	if current > c.HighSpeed {
		clearance -= current * c.ReactionGain
	}
	limit := c.Limit(clearance)
	if limit <= c.MinSpeed {
		return c.MinSpeed
	}

	var set float64
	switch {
	case current <= limit && current >= c.HighSpeed:
		set = limit
	case current <= limit:
		set = current + (limit-current)*c.Wheelbase
	default:
		set = current - (current-limit)*c.DecelGain
	}
	return math.Min(math.Max(set, c.MinSpeed), c.MaxSpeed)
}
