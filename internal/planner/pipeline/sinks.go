package pipeline

import (
	"reflect"
	"time"

	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
)

// CommandSink delivers drive commands to the vehicle.
type CommandSink interface {
	SendDrive(cmd l4drive.Command) error
}

// Marker is the debug marker placed on the lookahead waypoint.
type Marker struct {
	Shape  string  `json:"shape"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
	ScaleZ float64 `json:"scale_z"`
}

// MarkerSink publishes the lookahead marker for visualisation.
type MarkerSink interface {
	PublishMarker(m Marker) error
}

// TickRecord is the per-tick telemetry row.
type TickRecord struct {
	Time         time.Time
	Tick         uint64
	Latency      time.Duration
	GoalOffset   int
	Obstacles    int
	Clearance    float64
	ClearanceOK  bool
	Steering     float64
	Held         bool
	Speed        float64
	CurrentSpeed float64
	WaypointIdx  int
}

// TelemetrySink records per-tick telemetry.
type TelemetrySink interface {
	RecordTick(r TickRecord)
}

// TrajectorySample is one pose of the driven trajectory.
type TrajectorySample struct {
	Time    time.Time
	X       float64
	Y       float64
	Heading float64
	Speed   float64
}

// TrajectorySink records the driven trajectory.
type TrajectorySink interface {
	RecordPose(s TrajectorySample)
}

// LapRecord is one completed lap.
type LapRecord struct {
	Time     time.Time
	Lap      int
	Duration time.Duration
}

// LapSink records completed laps.
type LapSink interface {
	RecordLap(l LapRecord)
}

// TickObserver receives every planned tick, for live monitoring.
type TickObserver interface {
	ObserveTick(r *TickResult)
}

// Sinks bundles the optional outputs of the loop. Nil members are skipped.
type Sinks struct {
	Command    CommandSink
	Marker     MarkerSink
	Telemetry  TelemetrySink
	Trajectory TrajectorySink
	Laps       LapSink
	Observers  []TickObserver
}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (s Sinks) normalise() Sinks {
	if isNilInterface(s.Command) {
		s.Command = nil
	}
	if isNilInterface(s.Marker) {
		s.Marker = nil
	}
	if isNilInterface(s.Telemetry) {
		s.Telemetry = nil
	}
	if isNilInterface(s.Trajectory) {
		s.Trajectory = nil
	}
	if isNilInterface(s.Laps) {
		s.Laps = nil
	}
	obs := s.Observers[:0:0]
	for _, o := range s.Observers {
		if !isNilInterface(o) {
			obs = append(obs, o)
		}
	}
	s.Observers = obs
	return s
}
