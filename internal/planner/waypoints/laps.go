package waypoints

import "time"

// LapTimer measures lap durations. Timing starts the first time the vehicle
// moves faster than StartSpeed and each wrap of the tracker closes a lap.
type LapTimer struct {
	StartSpeed float64

	started bool
	start   time.Time
	laps    int
}

// NewLapTimer returns a timer that arms above 1 m/s.
func NewLapTimer() *LapTimer {
	return &LapTimer{StartSpeed: 1.0}
}

// Observe feeds one tick. It returns the finished lap's number and duration
// when wrapped closes a timed lap.
func (l *LapTimer) Observe(now time.Time, speed float64, wrapped bool) (lap int, d time.Duration, ok bool) {
	if !l.started {
		if speed > l.StartSpeed {
			l.started = true
			l.start = now
		}
		return 0, 0, false
	}
	if !wrapped {
		return 0, 0, false
	}
	l.laps++
	d = now.Sub(l.start)
	l.start = now
	return l.laps, d, true
}

// Started reports whether timing has begun.
func (l *LapTimer) Started() bool {
	return l.started
}

// Laps returns the number of completed laps.
func (l *LapTimer) Laps() int {
	return l.laps
}
