package serialmux

import (
	"bufio"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
)

func TestSimulatedVehicle_StraightLine(t *testing.T) {
	v := NewSimulatedVehicle(waypoints.Pose{}, 0.325)
	v.SpeedTau = 0
	defer v.Close()

	_, err := v.Write([]byte("drive,0,2,0,0\n"))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		v.Step(100 * time.Millisecond)
	}
	o := v.Odometry()
	assert.InDelta(t, 2.0, o.Pose.X, 1e-9)
	assert.InDelta(t, 0.0, o.Pose.Y, 1e-12)
	assert.Equal(t, 2.0, o.Speed)
}

func TestSimulatedVehicle_TurnsLeft(t *testing.T) {
	v := NewSimulatedVehicle(waypoints.Pose{}, 0.325)
	v.SpeedTau = 0
	defer v.Close()

	v.Write([]byte("hello\ndrive,0.2,1,0,0\n"))
	v.Step(100 * time.Millisecond)
	o := v.Odometry()
	want := math.Tan(0.2) / 0.325
	assert.InDelta(t, want, o.YawRate, 1e-12)
	assert.Greater(t, o.Pose.Heading, 0.0)
}

func TestSimulatedVehicle_SpeedLag(t *testing.T) {
	v := NewSimulatedVehicle(waypoints.Pose{}, 0.325)
	defer v.Close()
	v.Write([]byte("drive,0,3,0,0"))
	v.Step(150 * time.Millisecond)
	assert.InDelta(t, 1.5, v.Odometry().Speed, 1e-9)
}

func TestSimulatedVehicle_ReportsOdometry(t *testing.T) {
	v := NewSimulatedVehicle(waypoints.Pose{X: 1, Y: 2}, 0.325)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v.Start(ctx, 5*time.Millisecond)

	sc := bufio.NewScanner(v)
	require.True(t, sc.Scan())
	o, err := ParseOdometry(sc.Text())
	require.NoError(t, err)
	assert.Equal(t, 1.0, o.Pose.X)
	assert.Equal(t, 2.0, o.Pose.Y)

	require.NoError(t, v.Close())
	for sc.Scan() {
	}
	assert.NoError(t, sc.Err())
}
