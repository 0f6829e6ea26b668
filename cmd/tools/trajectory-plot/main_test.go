package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fieldpilot/internal/db"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
)

func TestBuildPlot(t *testing.T) {
	path, err := waypoints.NewPath([]orb.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}})
	require.NoError(t, err)
	traj := []db.TrajectoryRow{
		{Time: time.Unix(0, 0), X: 0.1, Y: 0},
		{Time: time.Unix(1, 0), X: 2, Y: 0.2},
		{Time: time.Unix(2, 0), X: 3.9, Y: 1},
	}

	p, err := buildPlot(db.Run{ID: "abc"}, traj, path, 2)
	require.NoError(t, err)
	assert.Equal(t, "Run abc (2 laps)", p.Title.Text)

	wt, err := p.WriterTo(4*vg.Inch, 4*vg.Inch, "png")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = wt.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestBuildPlot_TrajectoryOnly(t *testing.T) {
	p, err := buildPlot(db.Run{ID: "x"}, []db.TrajectoryRow{{X: 1, Y: 1}, {X: 2, Y: 2}}, waypoints.Path{}, 0)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "plot.svg", outputPath("plot.svg", "abc"))
	assert.Equal(t, "trajectory-abc.png", outputPath("", "abc"))
	assert.Equal(t, "trajectory-a_b.png", outputPath("", "a/b"))
}
