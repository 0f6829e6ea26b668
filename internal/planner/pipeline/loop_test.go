package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
	"github.com/banshee-data/fieldpilot/internal/timeutil"
)

const increment = 0.00435

type recordingSink struct {
	mu       sync.Mutex
	commands []l4drive.Command
	markers  []Marker
	ticks    []TickRecord
	poses    []TrajectorySample
	laps     []LapRecord
	observed []*TickResult
	sendErr  error
	notify   chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (r *recordingSink) SendDrive(cmd l4drive.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	return r.sendErr
}

func (r *recordingSink) PublishMarker(m Marker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append(r.markers, m)
	return nil
}

func (r *recordingSink) RecordTick(rec TickRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, rec)
}

func (r *recordingSink) RecordPose(s TrajectorySample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poses = append(r.poses, s)
}

func (r *recordingSink) RecordLap(l LapRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.laps = append(r.laps, l)
}

func (r *recordingSink) ObserveTick(res *TickResult) {
	r.mu.Lock()
	r.observed = append(r.observed, res)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recordingSink) sinks() Sinks {
	return Sinks{Command: r, Marker: r, Telemetry: r, Trajectory: r, Laps: r, Observers: []TickObserver{r}}
}

func (r *recordingSink) commandCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func muteLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

// straightPath runs along +x ahead of a vehicle parked at the origin.
func straightPath(t *testing.T) waypoints.Path {
	t.Helper()
	pts := make([]orb.Point, 50)
	for i := range pts {
		pts[i] = orb.Point{float64(i + 1), 0}
	}
	p, err := waypoints.NewPath(pts)
	require.NoError(t, err)
	return p
}

func flatScan(r float64) l1scan.RangeScan {
	ranges := make([]float64, 1080)
	for i := range ranges {
		ranges[i] = r
	}
	return l1scan.RangeScan{AngleIncrement: increment, Ranges: ranges}
}

type harness struct {
	loop   *Loop
	inputs *Inputs
	clock  *timeutil.MockClock
	sink   *recordingSink
}

func newHarness(t *testing.T, path waypoints.Path) *harness {
	t.Helper()
	muteLogs(t)
	clock := timeutil.NewMockClock(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	inputs := NewInputs(clock)
	sink := newRecordingSink()
	loop := NewLoop(DefaultConfig(), path, inputs, clock, sink.sinks())
	return &harness{loop: loop, inputs: inputs, clock: clock, sink: sink}
}

func (h *harness) tick() *TickResult {
	h.clock.Advance(10 * time.Millisecond)
	return h.loop.Tick(h.clock.Now())
}

func TestLoop_OpenTrackDrivesStraight(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{Speed: 0})

	res := h.tick()
	require.True(t, res.Planned)
	assert.Empty(t, res.Obstacles)
	assert.Equal(t, 539, res.GoalRay)
	assert.Equal(t, 0, res.GoalOffset)
	assert.InDelta(t, 0.0, res.Command.SteeringAngle, 0.01)
	assert.False(t, res.Held)
	assert.InDelta(t, 10.0, res.Clearance, 1e-9)
	assert.Zero(t, res.Command.Acceleration)
	assert.Zero(t, res.Command.Jerk)

	// Feeding the commanded speed back ramps toward the clearance limit.
	limit := DefaultConfig().Cruise.Limit(10)
	speed := res.Command.Speed
	for i := 0; i < 40; i++ {
		h.inputs.UpdateOdometry(Odometry{Speed: speed})
		next := h.tick().Command.Speed
		assert.GreaterOrEqual(t, next, speed)
		speed = next
	}
	assert.InDelta(t, limit, speed, 1e-3)
	assert.LessOrEqual(t, speed, DefaultConfig().Cruise.MaxSpeed)
}

// frontObstacleScan places 20 rays at 1.0m centred on the front ray.
func frontObstacleScan() l1scan.RangeScan {
	scan := flatScan(10)
	for i := 529; i < 549; i++ {
		scan.Ranges[i] = 1.0
	}
	return scan
}

func TestLoop_SteersAroundFrontObstacle(t *testing.T) {
	for _, speed := range []float64{0, 1.0, 2} {
		t.Run(fmt.Sprintf("speed %.1f", speed), func(t *testing.T) {
			run := func() (*TickResult, ControllerState) {
				h := newHarness(t, straightPath(t))
				h.inputs.UpdateScan(frontObstacleScan())
				h.inputs.UpdateOdometry(Odometry{Speed: speed})
				return h.tick(), h.loop.State()
			}

			res, state := run()
			require.True(t, res.Planned)
			require.Len(t, res.Obstacles, 1)
			// Smoothing widens the cluster one ray further left, so the
			// lowest field lies at the left window edge.
			assert.Equal(t, -1, res.Obstacles[0].CenterOffset)
			assert.False(t, res.Held)
			assert.Positive(t, res.GoalOffset)
			assert.Greater(t, res.Command.SteeringAngle, 0.1)
			assert.Equal(t, res.Command.SteeringAngle, state.PrevSteering)

			again, _ := run()
			assert.Equal(t, res.GoalRay, again.GoalRay, "goal selection must be deterministic")
			assert.Equal(t, res.Command.SteeringAngle, again.Command.SteeringAngle)
		})
	}
}

func TestLoop_SpikeHeldAfterFirstTick(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{Speed: 0})
	first := h.tick()
	require.True(t, first.Planned)
	assert.InDelta(t, 0.0, first.Command.SteeringAngle, 0.01)

	h.inputs.UpdateScan(frontObstacleScan())
	res := h.tick()
	require.True(t, res.Planned)
	assert.True(t, res.Held)
	assert.Equal(t, first.Command.SteeringAngle, res.Command.SteeringAngle)
	assert.Equal(t, first.Command.SteeringAngle, h.loop.State().PrevSteering)
}

func TestLoop_SkippedTicks(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(in *Inputs)
		reason string
	}{
		{"no scan yet", func(in *Inputs) { in.UpdateOdometry(Odometry{}) }, SkipNoScan},
		{"zero length scan", func(in *Inputs) {
			in.UpdateScan(l1scan.RangeScan{AngleIncrement: increment})
			in.UpdateOdometry(Odometry{})
		}, SkipEmptyScan},
		{"no valid samples", func(in *Inputs) {
			in.UpdateScan(flatScan(math.NaN()))
			in.UpdateOdometry(Odometry{})
		}, SkipNoValidScan},
		{"no odometry yet", func(in *Inputs) { in.UpdateScan(flatScan(10)) }, SkipNoOdometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, straightPath(t))
			tt.setup(h.inputs)

			res := h.tick()
			assert.False(t, res.Planned)
			assert.Equal(t, tt.reason, res.SkipReason)
			assert.Zero(t, h.sink.commandCount(), "skipped tick must not emit")

			st := h.loop.State()
			assert.Equal(t, uint64(1), st.Ticks, "a skipped tick still consumes its slot")
			assert.Equal(t, uint64(1), st.Skipped)
			assert.Equal(t, uint64(0), st.Planned)

			last, ok := h.loop.Last()
			require.True(t, ok)
			assert.Equal(t, tt.reason, last.SkipReason)
		})
	}
}

func TestLoop_RawScanNotMutated(t *testing.T) {
	h := newHarness(t, straightPath(t))
	scan := flatScan(10)
	for i := 529; i < 549; i++ {
		scan.Ranges[i] = 1.0
	}
	scan.Ranges[100] = 0
	before := append([]float64(nil), scan.Ranges...)
	h.inputs.UpdateScan(scan)
	h.inputs.UpdateOdometry(Odometry{Speed: 1})

	h.tick()
	assert.Equal(t, before, scan.Ranges)
}

func TestLoop_DefaultIncrement(t *testing.T) {
	h := newHarness(t, straightPath(t))
	scan := flatScan(10)
	scan.AngleIncrement = 0
	h.inputs.UpdateScan(scan)
	h.inputs.UpdateOdometry(Odometry{})

	res := h.tick()
	require.True(t, res.Planned)
	assert.Equal(t, 0.00435, res.Increment)
}

func TestLoop_SinksReceiveOutputs(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{Pose: waypoints.Pose{X: 0.2}, Speed: 1})

	res := h.tick()
	require.True(t, res.Planned)

	s := h.sink
	require.Len(t, s.commands, 1)
	assert.Equal(t, res.Command, s.commands[0])

	require.Len(t, s.markers, 1)
	m := s.markers[0]
	assert.Equal(t, "CUBE", m.Shape)
	assert.Equal(t, res.Target.Point[0], m.X)
	assert.Equal(t, res.Target.Point[1], m.Y)
	assert.Equal(t, 0.1, m.Z)
	assert.Equal(t, 0.2, m.ScaleX)

	require.Len(t, s.ticks, 1)
	assert.Equal(t, res.Tick, s.ticks[0].Tick)
	assert.Equal(t, res.Command.Speed, s.ticks[0].Speed)
	assert.Equal(t, 1.0, s.ticks[0].CurrentSpeed)

	require.Len(t, s.poses, 1)
	assert.Equal(t, 0.2, s.poses[0].X)

	require.Len(t, s.observed, 1)
	assert.Same(t, res, s.observed[0])

	st := h.loop.State()
	assert.Equal(t, res.Target.Lookahead, st.Lookahead)
	assert.Equal(t, res.Command.SteeringAngle, st.PrevSteering)
	assert.Len(t, st.PrevRepulsive, 1080)
}

func TestLoop_SendErrorDoesNotFailTick(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.sink.sendErr = errors.New("port closed")
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{})

	res := h.tick()
	assert.True(t, res.Planned)
	assert.Equal(t, 1, h.sink.commandCount())
}

func TestLoop_NilSinksAreSkipped(t *testing.T) {
	muteLogs(t)
	var nilSink *recordingSink
	inputs := NewInputs(nil)
	loop := NewLoop(DefaultConfig(), straightPath(t), inputs, nil, Sinks{
		Command:   nilSink,
		Observers: []TickObserver{nilSink},
	})
	inputs.UpdateScan(flatScan(10))
	inputs.UpdateOdometry(Odometry{})

	assert.NotPanics(t, func() { loop.Tick(time.Now()) })
}

func TestLoop_HistorySampling(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{})

	var sampled []uint64
	for i := 0; i < 25; i++ {
		if res := h.tick(); res.SampleHistory {
			sampled = append(sampled, res.Tick)
		}
	}
	assert.Equal(t, []uint64{10, 20}, sampled)
}

func TestLoop_LapRecordedOnWrap(t *testing.T) {
	const n = 20
	pts := make([]orb.Point, n)
	for k := range pts {
		a := 2 * math.Pi * float64(k) / n
		pts[k] = orb.Point{5 * math.Cos(a), 5 * math.Sin(a)}
	}
	path, err := waypoints.NewPath(pts)
	require.NoError(t, err)

	h := newHarness(t, path)
	h.inputs.UpdateScan(flatScan(10))

	// Arm the lap timer near the end of the loop.
	h.loop.tracker.Current = 17
	p17 := path.At(17)
	h.inputs.UpdateOdometry(Odometry{Pose: waypoints.Pose{X: p17[0], Y: p17[1]}, Speed: 2})
	h.tick()
	assert.Empty(t, h.sink.laps)

	p1 := path.At(1)
	h.inputs.UpdateOdometry(Odometry{Pose: waypoints.Pose{X: p1[0], Y: p1[1]}, Speed: 2})
	res := h.tick()
	require.True(t, res.Target.Wrapped)
	require.Len(t, h.sink.laps, 1)
	assert.Equal(t, 1, h.sink.laps[0].Lap)
	assert.Equal(t, 10*time.Millisecond, h.sink.laps[0].Duration)
}

func TestLoop_Run(t *testing.T) {
	h := newHarness(t, straightPath(t))
	h.inputs.UpdateScan(flatScan(10))
	h.inputs.UpdateOdometry(Odometry{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()

	h.clock.WaitForTickers(1)
	for i := 0; i < 3; i++ {
		h.clock.Advance(10 * time.Millisecond)
		select {
		case <-h.sink.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d not observed", i+1)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	assert.Equal(t, 3, h.sink.commandCount())
}

func TestConfigFromTuning_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1.1, cfg.Filter.Scale)
	assert.Equal(t, 0.25, cfg.Filter.HalfWidth)
	assert.Equal(t, 20, cfg.Filter.Neighbors)
	assert.Equal(t, 0.125, cfg.Segmenter.HalfWidth)
	assert.Equal(t, 3.0, cfg.Segmenter.Threshold)
	assert.Equal(t, 0.2, cfg.Composer.Gamma)
	assert.Equal(t, 180, cfg.DetectHalfWidth)
	assert.Equal(t, 40, cfg.ClearanceHalfWidth)
	assert.Equal(t, 10*time.Millisecond, cfg.Interval)
	assert.Equal(t, l4drive.DefaultSteering(), cfg.Steering)
	assert.Equal(t, l4drive.DefaultCruise(), cfg.Cruise)
}
