package l2obstacles

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
)

const increment = 0.00435

func lidarScan(fill float64) l1scan.RangeScan {
	ranges := make([]float64, 1080)
	for i := range ranges {
		ranges[i] = fill
	}
	return l1scan.RangeScan{AngleIncrement: increment, Ranges: ranges}
}

func setRun(s l1scan.RangeScan, start, end int, r float64) {
	for i := start; i < end; i++ {
		s.Ranges[i] = r
	}
}

func defaultWindow(s l1scan.RangeScan) Window {
	return WindowAround(s.FrontIndex(), 180, s.Len())
}

func TestSegment_OpenTrack(t *testing.T) {
	s := lidarScan(10)
	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	assert.Empty(t, obs)
}

func TestSegment_SingleFrontObstacle(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 530, 550, 1.0)

	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	require.Len(t, obs, 1)
	o := obs[0]

	width := 20 * increment
	assert.Equal(t, 530, o.Start)
	assert.Equal(t, 550, o.End)
	assert.Equal(t, 1, o.CenterOffset) // 530 + 10 - 539
	assert.InDelta(t, 1.0, o.MeanRange, 1e-12)
	assert.InDelta(t, 1.0, o.MaxRange, 1e-12)
	assert.InDelta(t, width, o.Width, 1e-12)
	assert.InDelta(t, math.Atan2(math.Tan(width/2)+0.125, 1.0), o.Sigma, 1e-12)
	assert.InDelta(t, 2*math.Exp(0.25), o.Magnitude, 1e-12)
}

func TestSegment_StatisticsCoverRunOnly(t *testing.T) {
	s := lidarScan(10)
	s.Ranges[600] = 1.0
	s.Ranges[601] = 2.0
	s.Ranges[602] = 1.5

	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	require.Len(t, obs, 1)
	// The 10 m sample that ends the run must not leak into mean or max.
	assert.InDelta(t, 1.5, obs[0].MeanRange, 1e-12)
	assert.InDelta(t, 2.0, obs[0].MaxRange, 1e-12)
	assert.Equal(t, 603, obs[0].End)
	assert.Equal(t, 601-539, obs[0].CenterOffset)
}

func TestSegment_DisjointRunsInOrder(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 400, 410, 2.0)
	setRun(s, 500, 505, 1.0)
	setRun(s, 700, 710, 2.5)

	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	require.Len(t, obs, 3)
	for i := 1; i < len(obs); i++ {
		assert.LessOrEqual(t, obs[i-1].End, obs[i].Start, "runs overlap")
	}
	assert.Greater(t, obs[1].Magnitude, obs[0].Magnitude, "nearer cluster repels harder")
	assert.Greater(t, obs[0].Magnitude, obs[2].Magnitude)
}

func TestSegment_RunsCutAtWindowEdges(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 300, 370, 1.0) // straddles Start=359
	setRun(s, 710, 800, 1.0) // straddles End=719

	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	require.Len(t, obs, 2)
	assert.Equal(t, 359, obs[0].Start)
	assert.Equal(t, 370, obs[0].End)
	assert.Equal(t, 710, obs[1].Start)
	assert.Equal(t, 719, obs[1].End)
}

func TestSegment_ThresholdIsStrict(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 500, 510, 3.0)
	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	assert.Empty(t, obs, "samples equal to the threshold are free space")
}

func TestSegment_WholeWindowBlocked(t *testing.T) {
	s := lidarScan(0.5)
	obs := DefaultSegmenter().Segment(s, defaultWindow(s))
	require.Len(t, obs, 1)
	assert.Equal(t, 359, obs[0].Start)
	assert.Equal(t, 719, obs[0].End)
	assert.Equal(t, 359+180-539, obs[0].CenterOffset)
}

func TestSegment_SpreadLaw(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 520, 530, 1.0)
	s.Ranges[525] = 2.0

	seg := DefaultSegmenter()
	seg.Law = LawSpread
	obs := seg.Segment(s, defaultWindow(s))
	require.Len(t, obs, 1)
	mean := (9*1.0 + 2.0) / 10
	assert.InDelta(t, (2.0-mean)*math.Exp(0.25), obs[0].Magnitude, 1e-12)

	flat := lidarScan(10)
	setRun(flat, 520, 530, 1.0)
	obs = seg.Segment(flat, defaultWindow(flat))
	require.Len(t, obs, 1)
	assert.Zero(t, obs[0].Magnitude, "uniform run has no spread")
}

func TestSegment_MagnitudeNeverNegative(t *testing.T) {
	s := lidarScan(10)
	setRun(s, 520, 530, 1.0)

	seg := DefaultSegmenter()
	seg.Gain = -1
	obs := seg.Segment(s, defaultWindow(s))
	require.Len(t, obs, 1)
	assert.Zero(t, obs[0].Magnitude)
}

func TestSegment_WindowClampedToScan(t *testing.T) {
	s := l1scan.RangeScan{AngleIncrement: increment, Ranges: []float64{1, 1, 10}}
	obs := DefaultSegmenter().Segment(s, Window{Start: -5, End: 50})
	require.Len(t, obs, 1)
	assert.Equal(t, 0, obs[0].Start)
	assert.Equal(t, 2, obs[0].End)
}

func TestParseMagnitudeLaw(t *testing.T) {
	law, err := ParseMagnitudeLaw("spread")
	require.NoError(t, err)
	assert.Equal(t, LawSpread, law)
	assert.Equal(t, "spread", law.String())

	law, err = ParseMagnitudeLaw("")
	require.NoError(t, err)
	assert.Equal(t, LawDepth, law)

	_, err = ParseMagnitudeLaw("cubic")
	assert.Error(t, err)
	assert.Equal(t, "MagnitudeLaw(7)", MagnitudeLaw(7).String())
}
