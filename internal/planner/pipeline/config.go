package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/fieldpilot/internal/config"
	"github.com/banshee-data/fieldpilot/internal/planner/l1scan"
	"github.com/banshee-data/fieldpilot/internal/planner/l2obstacles"
	"github.com/banshee-data/fieldpilot/internal/planner/l3field"
	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
)

// Config holds the per-stage parameters of the loop.
type Config struct {
	Filter    l1scan.Filter
	Segmenter l2obstacles.Segmenter
	Composer  l3field.Composer
	Steering  l4drive.Steering
	Cruise    l4drive.Cruise

	DetectHalfWidth    int
	ClearanceHalfWidth int
	// DefaultIncrement stands in for a scan that reports no angular step.
	DefaultIncrement float64
	LookaheadBase    float64
	LookaheadGain    float64
	Interval         time.Duration
	// HistoryEvery controls how often observers are told to sample history.
	HistoryEvery int
}

// DefaultConfig returns the loop configuration with the tuned defaults.
func DefaultConfig() Config {
	cfg, _ := ConfigFromTuning(config.EmptyTuningConfig())
	return cfg
}

// ConfigFromTuning maps the tuning file onto the loop stages.
func ConfigFromTuning(t *config.TuningConfig) (Config, error) {
	law, err := l2obstacles.ParseMagnitudeLaw(t.GetMagnitudeLaw())
	if err != nil {
		return Config{}, fmt.Errorf("failed to configure segmenter: %w", err)
	}
	return Config{
		Filter: l1scan.Filter{
			Scale:     t.GetFilterScale(),
			HalfWidth: t.GetFilterSpanWidth(),
			Neighbors: t.GetGapFillNeighbors(),
		},
		Segmenter: l2obstacles.Segmenter{
			Threshold: t.GetObstacleThreshold(),
			HalfWidth: t.GetRobotHalfWidth(),
			Law:       law,
			Gain:      t.GetMagnitudeGain(),
		},
		Composer: l3field.Composer{Gamma: t.GetGamma()},
		Steering: l4drive.Steering{
			Wheelbase: t.GetWheelbase(),
			Exponent:  t.GetCurvatureExponent(),
			Epsilon:   t.GetSteeringEpsilon(),
			SpikeCap:  t.GetSteeringSpikeCap(),
			JumpCap:   t.GetSteeringJumpCap(),
		},
		Cruise: l4drive.Cruise{
			Mu:               t.GetMu(),
			Gravity:          t.GetGravity(),
			Wheelbase:        t.GetWheelbase(),
			MaxSpeed:         t.GetMaxSpeed(),
			MinSpeed:         t.GetMinSpeed(),
			HighSpeed:        t.GetHighSpeedThreshold(),
			ReactionGain:     t.GetReactionGain(),
			Margin:           t.GetFrictionMargin(),
			DecelGain:        t.GetDecelGain(),
			DefaultClearance: t.GetDefaultClearance(),
		},
		DetectHalfWidth:    t.GetDetectHalfWidthRays(),
		ClearanceHalfWidth: t.GetClearanceHalfWidthRays(),
		DefaultIncrement:   t.GetDefaultIncrement(),
		LookaheadBase:      t.GetLookaheadBase(),
		LookaheadGain:      t.GetLookaheadGain(),
		Interval:           t.GetTickInterval(),
		HistoryEvery:       t.GetHistoryEvery(),
	}, nil
}
