package serialmux

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
)

// SimulatedVehicle is a SerialPorter that behaves like the vehicle
// controller: drive lines written to it steer a kinematic bicycle model and
// it reports odometry lines at a fixed rate.
type SimulatedVehicle struct {
	Wheelbase float64
	// SpeedTau is the time constant of the speed response.
	SpeedTau time.Duration

	mu       sync.Mutex
	pose     waypoints.Pose
	speed    float64
	yawRate  float64
	steering float64
	target   float64

	r      *io.PipeReader
	w      *io.PipeWriter
	closed chan struct{}
	once   sync.Once
}

// NewSimulatedVehicle places a vehicle at start.
func NewSimulatedVehicle(start waypoints.Pose, wheelbase float64) *SimulatedVehicle {
	r, w := io.Pipe()
	return &SimulatedVehicle{
		Wheelbase: wheelbase,
		SpeedTau:  300 * time.Millisecond,
		pose:      start,
		r:         r,
		w:         w,
		closed:    make(chan struct{}),
	}
}

// Start reports odometry every interval until ctx is done or the vehicle is
// closed.
func (v *SimulatedVehicle) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				v.Close()
				return
			case <-v.closed:
				return
			case <-ticker.C:
				v.Step(interval)
				if _, err := io.WriteString(v.w, FormatOdometry(v.Odometry())+"\n"); err != nil {
					return
				}
			}
		}
	}()
}

// Step advances the model by dt.
func (v *SimulatedVehicle) Step(dt time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := dt.Seconds()
	if v.SpeedTau > 0 {
		v.speed += (v.target - v.speed) * math.Min(s/v.SpeedTau.Seconds(), 1)
	} else {
		v.speed = v.target
	}
	v.yawRate = 0
	if v.Wheelbase > 0 {
		v.yawRate = v.speed * math.Tan(v.steering) / v.Wheelbase
	}
	v.pose.X += v.speed * math.Cos(v.pose.Heading) * s
	v.pose.Y += v.speed * math.Sin(v.pose.Heading) * s
	v.pose.Heading = waypoints.NormalizeAngle(v.pose.Heading + v.yawRate*s)
}

// Odometry returns the current state.
func (v *SimulatedVehicle) Odometry() pipeline.Odometry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return pipeline.Odometry{Pose: v.pose, Speed: v.speed, YawRate: v.yawRate}
}

// Read returns odometry lines.
func (v *SimulatedVehicle) Read(b []byte) (int, error) {
	return v.r.Read(b)
}

// Write accepts drive lines; anything else is ignored.
func (v *SimulatedVehicle) Write(b []byte) (int, error) {
	for _, line := range strings.Split(string(b), "\n") {
		if ClassifyLine(line) != LineDrive {
			continue
		}
		cmd, err := ParseDrive(line)
		if err != nil {
			continue
		}
		v.mu.Lock()
		v.steering = cmd.SteeringAngle
		v.target = cmd.Speed
		v.mu.Unlock()
	}
	return len(b), nil
}

// Close stops odometry output.
func (v *SimulatedVehicle) Close() error {
	v.once.Do(func() {
		close(v.closed)
		v.w.Close()
	})
	return nil
}
