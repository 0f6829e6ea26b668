package pipeline

import (
	"sync"
	"time"

	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
	"github.com/banshee-data/fieldpilot/internal/timeutil"
)

// Odometry is one pose and velocity report from the vehicle.
type Odometry struct {
	Pose    waypoints.Pose
	Speed   float64
	YawRate float64
}

// Snapshot is a consistent view of the inputs taken at the start of a tick.
type Snapshot struct {
	Scan     l1scan.RangeScan
	ScanAt   time.Time
	HaveScan bool

	Odometry
	OdomAt   time.Time
	HaveOdom bool

	ScanCount uint64
	OdomCount uint64
}

// Inputs is the mailbox between the asynchronous feeds and the loop. A single
// lock covers every field so a tick never sees a scan from one update and a
// pose from another.
type Inputs struct {
	mu    sync.Mutex
	clock timeutil.Clock
	snap  Snapshot
}

// NewInputs returns an empty mailbox stamping updates with clock.
func NewInputs(clock timeutil.Clock) *Inputs {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Inputs{clock: clock}
}

// UpdateScan stores the latest scan. The caller hands over ownership of
// s.Ranges and must not modify it afterwards.
func (in *Inputs) UpdateScan(s l1scan.RangeScan) {
	now := in.clock.Now()
	in.mu.Lock()
	in.snap.Scan = s
	in.snap.ScanAt = now
	in.snap.HaveScan = true
	in.snap.ScanCount++
	in.mu.Unlock()
}

// HandleScan lets Inputs serve as a network scan handler.
func (in *Inputs) HandleScan(s l1scan.RangeScan) {
	in.UpdateScan(s)
}

// UpdateOdometry stores the latest pose and velocity.
func (in *Inputs) UpdateOdometry(o Odometry) {
	now := in.clock.Now()
	in.mu.Lock()
	in.snap.Odometry = o
	in.snap.OdomAt = now
	in.snap.HaveOdom = true
	in.snap.OdomCount++
	in.mu.Unlock()
}

// HandleOdometry lets Inputs serve as a vehicle link odometry handler.
func (in *Inputs) HandleOdometry(o Odometry) {
	in.UpdateOdometry(o)
}

// Snapshot returns a copy of the current inputs.
func (in *Inputs) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.snap
}

// ScanAge returns how long ago the last scan arrived. ok is false before the
// first scan.
func (in *Inputs) ScanAge() (age time.Duration, ok bool) {
	in.mu.Lock()
	at, have := in.snap.ScanAt, in.snap.HaveScan
	in.mu.Unlock()
	if !have {
		return 0, false
	}
	return in.clock.Since(at), true
}
