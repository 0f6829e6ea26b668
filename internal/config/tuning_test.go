package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.Equal(t, 3.47, cfg.GetMass())
	assert.Equal(t, 0.325, cfg.GetWheelbase())
	assert.Equal(t, 0.125, cfg.GetRobotHalfWidth())
	assert.Equal(t, 0.25, cfg.GetFilterSpanWidth())
	assert.Equal(t, 9.81, cfg.GetGravity())
	assert.Equal(t, 0.523, cfg.GetMu())
	assert.Equal(t, 20.0, cfg.GetMaxSpeed())
	assert.Equal(t, 1.5, cfg.GetMinSpeed())
	assert.Equal(t, 10.0, cfg.GetHighSpeedThreshold())
	assert.Equal(t, 0.7, cfg.GetReactionGain())
	assert.Equal(t, 2.0, cfg.GetFrictionMargin())
	assert.Equal(t, 0.2, cfg.GetDecelGain())
	assert.Equal(t, 1.0, cfg.GetDefaultClearance())
	assert.Equal(t, 40, cfg.GetClearanceHalfWidthRays())
	assert.Equal(t, 0.2, cfg.GetGamma())
	assert.Equal(t, 3.0, cfg.GetObstacleThreshold())
	assert.Equal(t, 1.1, cfg.GetFilterScale())
	assert.Equal(t, 20, cfg.GetGapFillNeighbors())
	assert.Equal(t, 180, cfg.GetDetectHalfWidthRays())
	assert.Equal(t, MagnitudeLawDepth, cfg.GetMagnitudeLaw())
	assert.InDelta(t, math.Exp(0.25), cfg.GetMagnitudeGain(), 1e-12)
	assert.Equal(t, 0.5, cfg.GetLookaheadBase())
	assert.Equal(t, 0.3, cfg.GetLookaheadGain())
	assert.Equal(t, 1.25, cfg.GetCurvatureExponent())
	assert.Equal(t, 0.001, cfg.GetSteeringEpsilon())
	assert.Equal(t, 0.5, cfg.GetSteeringSpikeCap())
	assert.Equal(t, 0.5, cfg.GetSteeringJumpCap())
	assert.Equal(t, 100, cfg.GetRateHz())
	assert.Equal(t, 10*time.Millisecond, cfg.GetTickInterval())
	assert.Equal(t, 0.00435, cfg.GetDefaultIncrement())
	assert.Equal(t, 500*time.Millisecond, cfg.GetStaleScanTimeout())
	assert.Equal(t, 10, cfg.GetHistoryEvery())
	assert.Equal(t, "", cfg.GetWaypointPath())
	assert.Equal(t, ',', cfg.GetWaypointDelimiter())
}

func TestMustLoadDefaultConfig_MatchesAccessorDefaults(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyTuningConfig()

	// The defaults file and the accessor fallbacks must agree.
	assert.Equal(t, empty.GetWheelbase(), cfg.GetWheelbase())
	assert.Equal(t, empty.GetRobotHalfWidth(), cfg.GetRobotHalfWidth())
	assert.Equal(t, empty.GetFilterSpanWidth(), cfg.GetFilterSpanWidth())
	assert.Equal(t, empty.GetMaxSpeed(), cfg.GetMaxSpeed())
	assert.Equal(t, empty.GetMinSpeed(), cfg.GetMinSpeed())
	assert.Equal(t, empty.GetGamma(), cfg.GetGamma())
	assert.Equal(t, empty.GetDetectHalfWidthRays(), cfg.GetDetectHalfWidthRays())
	assert.InDelta(t, empty.GetMagnitudeGain(), cfg.GetMagnitudeGain(), 1e-12)
	assert.Equal(t, empty.GetCurvatureExponent(), cfg.GetCurvatureExponent())
	assert.Equal(t, empty.GetRateHz(), cfg.GetRateHz())
	assert.Equal(t, empty.GetStaleScanTimeout(), cfg.GetStaleScanTimeout())
	assert.Nil(t, cfg.WaypointPath, "defaults must not name a track")
}

func TestLoadTuningConfig_JSON(t *testing.T) {
	path := writeConfig(t, "track.json", `{
  "max_speed": 8.0,
  "gamma": 0.35,
  "magnitude_law": "spread",
  "rate_hz": 50,
  "stale_scan_timeout": "250ms",
  "waypoint_path": "tracks/vegas.csv"
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8.0, cfg.GetMaxSpeed())
	assert.Equal(t, 0.35, cfg.GetGamma())
	assert.Equal(t, MagnitudeLawSpread, cfg.GetMagnitudeLaw())
	assert.Equal(t, 20*time.Millisecond, cfg.GetTickInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.GetStaleScanTimeout())
	assert.Equal(t, "tracks/vegas.csv", cfg.GetWaypointPath())
	// omitted fields keep their defaults
	assert.Equal(t, 1.5, cfg.GetMinSpeed())
}

func TestLoadTuningConfig_YAML(t *testing.T) {
	path := writeConfig(t, "track.yaml", `
wheelbase: 0.33
detect_half_width_rays: 120
waypoint_path: /data/loop.csv
waypoint_delimiter: ";"
`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.33, cfg.GetWheelbase())
	assert.Equal(t, 120, cfg.GetDetectHalfWidthRays())
	assert.Equal(t, "/data/loop.csv", cfg.GetWaypointPath())
	assert.Equal(t, ';', cfg.GetWaypointDelimiter())
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	t.Run("wrong extension", func(t *testing.T) {
		path := writeConfig(t, "track.txt", `{}`)
		_, err := LoadTuningConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extension")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("too large", func(t *testing.T) {
		big := `{"gamma": 0.2` + strings.Repeat(" ", 1024*1024) + `}`
		path := writeConfig(t, "big.json", big)
		_, err := LoadTuningConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, "bad.json", `{"gamma": `)
		_, err := LoadTuningConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config JSON")
	})

	t.Run("invalid value", func(t *testing.T) {
		path := writeConfig(t, "bad.yml", "max_speed: -1\n")
		_, err := LoadTuningConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_speed")
	})
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr string
	}{
		{"empty is valid", TuningConfig{}, ""},
		{"zero wheelbase", TuningConfig{Wheelbase: f(0)}, "wheelbase"},
		{"negative gamma", TuningConfig{Gamma: f(-0.1)}, "gamma"},
		{"min above max", TuningConfig{MinSpeed: f(5), MaxSpeed: f(4)}, "min_speed"},
		{"zero rate", TuningConfig{RateHz: i(0)}, "rate_hz"},
		{"zero gap fill neighbours", TuningConfig{GapFillNeighbors: i(0)}, "gap_fill_neighbors"},
		{"unknown law", TuningConfig{MagnitudeLaw: s("cubic")}, "magnitude_law"},
		{"bad duration", TuningConfig{StaleScanTimeout: s("soon")}, "stale_scan_timeout"},
		{"long delimiter", TuningConfig{WaypointDelimiter: s(",;")}, "waypoint_delimiter"},
		{"spread law", TuningConfig{MagnitudeLaw: s(MagnitudeLawSpread)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireStartup(t *testing.T) {
	cfg := EmptyTuningConfig()
	err := cfg.RequireStartup()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigMissing))
	assert.Contains(t, err.Error(), "waypoint_path")

	blank := "   "
	cfg.WaypointPath = &blank
	assert.ErrorIs(t, cfg.RequireStartup(), ErrConfigMissing)

	path := "track.csv"
	cfg.WaypointPath = &path
	assert.NoError(t, cfg.RequireStartup())
}

func TestGetStaleScanTimeout_ParseErrorFallsBack(t *testing.T) {
	bad := "not-a-duration"
	cfg := &TuningConfig{StaleScanTimeout: &bad}
	assert.Equal(t, 500*time.Millisecond, cfg.GetStaleScanTimeout())
}
