package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
	"github.com/banshee-data/fieldpilot/internal/planner/l2obstacles"
	"github.com/banshee-data/fieldpilot/internal/planner/l3field"
	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
	"github.com/banshee-data/fieldpilot/internal/timeutil"
)

// Skip reasons reported in TickResult.
const (
	SkipNoScan      = "no scan"
	SkipEmptyScan   = "empty scan"
	SkipNoValidScan = "no valid samples"
	SkipNoOdometry  = "no odometry"
)

// ControllerState is the state carried between ticks. Only the loop
// goroutine writes it.
type ControllerState struct {
	WaypointIndex int     `json:"waypoint_index"`
	Nearest       float64 `json:"nearest"`
	Lookahead     float64 `json:"lookahead"`
	PrevSteering  float64 `json:"prev_steering"`
	// PrevRepulsive is the repulsive field of the last planned tick.
	PrevRepulsive []float64 `json:"-"`
	Ticks         uint64    `json:"ticks"`
	Planned       uint64    `json:"planned"`
	Skipped       uint64    `json:"skipped"`
}

// TickResult describes one tick.
type TickResult struct {
	Time       time.Time     `json:"time"`
	Tick       uint64        `json:"tick"`
	Planned    bool          `json:"planned"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Latency    time.Duration `json:"latency_ns"`

	Pose         waypoints.Pose `json:"pose"`
	CurrentSpeed float64        `json:"current_speed"`

	Obstacles   []l2obstacles.Obstacle `json:"obstacles"`
	Window      l2obstacles.Window     `json:"window"`
	Target      waypoints.Target       `json:"target"`
	Field       l3field.Sample         `json:"-"`
	GoalRay     int                    `json:"goal_ray"`
	GoalOffset  int                    `json:"goal_offset"`
	Increment   float64                `json:"increment"`
	Clearance   float64                `json:"clearance"`
	ClearanceOK bool                   `json:"clearance_ok"`
	Command     l4drive.Command        `json:"command"`
	Held        bool                   `json:"held"`
	// SampleHistory is set on every HistoryEvery-th planned tick.
	SampleHistory bool `json:"-"`
}

// Loop is the fixed-rate controller.
type Loop struct {
	cfg     Config
	inputs  *Inputs
	tracker *waypoints.Tracker
	laps    *waypoints.LapTimer
	clock   timeutil.Clock
	sinks   Sinks
	warn    *monitoring.Every

	state ControllerState

	mu        sync.RWMutex
	last      *TickResult
	published ControllerState
}

// NewLoop wires a loop over path. clock may be nil for wall-clock time.
func NewLoop(cfg Config, path waypoints.Path, inputs *Inputs, clock timeutil.Clock, sinks Sinks) *Loop {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.HistoryEvery < 1 {
		cfg.HistoryEvery = 1
	}
	return &Loop{
		cfg:     cfg,
		inputs:  inputs,
		tracker: waypoints.NewTracker(path, cfg.LookaheadBase, cfg.LookaheadGain),
		laps:    waypoints.NewLapTimer(),
		clock:   clock,
		sinks:   sinks.normalise(),
		warn:    monitoring.NewEvery(time.Second),
	}
}

// Run ticks at cfg.Interval until ctx is cancelled. A tick that is still
// running when the next one is due causes that slot to be dropped.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()

	monitoring.Logf("control loop running every %v", interval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("control loop stopped after %d ticks (%d skipped)", l.state.Ticks, l.state.Skipped)
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case now := <-ticker.C():
			l.Tick(now)
		}
	}
}

// Tick runs one control cycle at now. Sensor anomalies never fail a tick;
// they skip planning or substitute a default and are reported in the result.
func (l *Loop) Tick(now time.Time) *TickResult {
	started := l.clock.Now()
	snap := l.inputs.Snapshot()
	l.state.Ticks++

	res := &TickResult{
		Time:         now,
		Tick:         l.state.Ticks,
		Pose:         snap.Pose,
		CurrentSpeed: snap.Speed,
		GoalRay:      -1,
	}

	switch {
	case !snap.HaveScan:
		return l.skip(res, SkipNoScan)
	case snap.Scan.Len() == 0:
		return l.skip(res, SkipEmptyScan)
	case !snap.HaveOdom:
		return l.skip(res, SkipNoOdometry)
	}

	raw := snap.Scan
	if !(raw.AngleIncrement > 0) {
		raw.AngleIncrement = l.cfg.DefaultIncrement
	}
	filtered, err := l.cfg.Filter.Apply(raw)
	if err != nil {
		return l.skip(res, SkipNoValidScan)
	}

	n := filtered.Len()
	front := filtered.FrontIndex()
	inc := filtered.AngleIncrement
	w := l2obstacles.WindowAround(front, l.cfg.DetectHalfWidth, n)

	obstacles := l.cfg.Segmenter.Segment(filtered, w)
	target := l.tracker.Update(snap.Pose, snap.Speed)
	field := l.cfg.Composer.Compose(obstacles, target.Bearing, n, front, inc, w)
	goal := l3field.GoalRay(field, w)
	offset := goal - front

	// There is no commanded angle to hold before the first planned tick.
	angle, held := l.cfg.Steering.Raw(offset, inc, target.Lookahead), false
	if l.state.Planned > 0 {
		angle, held = l.cfg.Steering.Hold(angle, l.state.PrevSteering)
	}
	clearance, ok := l1scan.ForwardClearance(filtered, l.cfg.ClearanceHalfWidth)
	if !ok {
		l.warn.Logf("scan-clearance", "SCAN ERR: no usable forward samples, assuming %.2fm clearance", l.cfg.Cruise.DefaultClearance)
	}
	speed := l.cfg.Cruise.Target(clearance, ok, snap.Speed)
	cmd := l4drive.Command{SteeringAngle: angle, Speed: speed}

	l.state.WaypointIndex = l.tracker.Current
	l.state.Nearest = l.tracker.Nearest
	l.state.Lookahead = target.Lookahead
	l.state.PrevSteering = angle
	l.state.PrevRepulsive = field.Repulsive
	l.state.Planned++

	res.Planned = true
	res.Obstacles = obstacles
	res.Window = w
	res.Target = target
	res.Field = field
	res.GoalRay = goal
	res.GoalOffset = offset
	res.Increment = inc
	res.Clearance = clearance
	res.ClearanceOK = ok
	res.Command = cmd
	res.Held = held
	res.SampleHistory = l.state.Planned%uint64(l.cfg.HistoryEvery) == 0

	if held {
		monitoring.Debugf("tick %d: steering spike held at %.3f", res.Tick, angle)
	}

	l.emit(res, now, snap)
	res.Latency = l.clock.Since(started)
	l.record(res)
	return res
}

func (l *Loop) skip(res *TickResult, reason string) *TickResult {
	l.state.Skipped++
	res.SkipReason = reason
	l.warn.Logf("skip-"+reason, "tick %d skipped: %s", res.Tick, reason)
	l.record(res)
	return res
}

func (l *Loop) emit(res *TickResult, now time.Time, snap Snapshot) {
	if l.sinks.Command != nil {
		if err := l.sinks.Command.SendDrive(res.Command); err != nil {
			l.warn.Logf("send-drive", "failed to send drive command: %v", err)
		}
	}
	if l.sinks.Marker != nil {
		m := Marker{
			Shape:  "CUBE",
			X:      res.Target.Point[0],
			Y:      res.Target.Point[1],
			Z:      0.1,
			ScaleX: 0.2,
			ScaleY: 0.2,
			ScaleZ: 0.1,
		}
		if err := l.sinks.Marker.PublishMarker(m); err != nil {
			l.warn.Logf("publish-marker", "failed to publish marker: %v", err)
		}
	}
	if l.sinks.Trajectory != nil {
		l.sinks.Trajectory.RecordPose(TrajectorySample{
			Time:    now,
			X:       snap.Pose.X,
			Y:       snap.Pose.Y,
			Heading: snap.Pose.Heading,
			Speed:   snap.Speed,
		})
	}
	if lap, d, ok := l.laps.Observe(now, snap.Speed, res.Target.Wrapped); ok {
		monitoring.Logf("lap %d completed in %v", lap, d)
		if l.sinks.Laps != nil {
			l.sinks.Laps.RecordLap(LapRecord{Time: now, Lap: lap, Duration: d})
		}
	}
}

func (l *Loop) record(res *TickResult) {
	if res.Planned && l.sinks.Telemetry != nil {
		l.sinks.Telemetry.RecordTick(TickRecord{
			Time:         res.Time,
			Tick:         res.Tick,
			Latency:      res.Latency,
			GoalOffset:   res.GoalOffset,
			Obstacles:    len(res.Obstacles),
			Clearance:    res.Clearance,
			ClearanceOK:  res.ClearanceOK,
			Steering:     res.Command.SteeringAngle,
			Held:         res.Held,
			Speed:        res.Command.Speed,
			CurrentSpeed: res.CurrentSpeed,
			WaypointIdx:  res.Target.Index,
		})
	}
	if res.Planned {
		for _, o := range l.sinks.Observers {
			o.ObserveTick(res)
		}
	}

	l.mu.Lock()
	if res.Planned || l.last == nil {
		l.last = res
	}
	l.published = l.state
	l.mu.Unlock()
}

// Last returns the most recent planned tick, or the most recent skipped one
// if nothing has been planned yet.
func (l *Loop) Last() (*TickResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.last != nil
}

// State returns the controller state as of the last completed tick.
func (l *Loop) State() ControllerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.published
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.cfg
}
