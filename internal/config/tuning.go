package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrConfigMissing is returned by RequireStartup when a parameter without a
// usable default is absent.
var ErrConfigMissing = errors.New("required configuration missing")

// Magnitude laws accepted by magnitude_law.
const (
	MagnitudeLawDepth  = "depth"
	MagnitudeLawSpread = "spread"
)

// TuningConfig is the root configuration of the planner. Every field is
// optional; Get* accessors return the default for omitted fields so partial
// files are safe. The same struct is served by /api/config.
type TuningConfig struct {
	// Vehicle
	Mass           *float64 `json:"mass,omitempty" yaml:"mass,omitempty"`
	Wheelbase      *float64 `json:"wheelbase,omitempty" yaml:"wheelbase,omitempty"`
	RobotHalfWidth *float64 `json:"robot_half_width,omitempty" yaml:"robot_half_width,omitempty"`
	Gravity        *float64 `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	Mu             *float64 `json:"mu,omitempty" yaml:"mu,omitempty"`

	// Speed policy
	MaxSpeed               *float64 `json:"max_speed,omitempty" yaml:"max_speed,omitempty"`
	MinSpeed               *float64 `json:"min_speed,omitempty" yaml:"min_speed,omitempty"`
	HighSpeedThreshold     *float64 `json:"high_speed_threshold,omitempty" yaml:"high_speed_threshold,omitempty"`
	ReactionGain           *float64 `json:"reaction_gain,omitempty" yaml:"reaction_gain,omitempty"`
	FrictionMargin         *float64 `json:"friction_margin,omitempty" yaml:"friction_margin,omitempty"`
	DecelGain              *float64 `json:"decel_gain,omitempty" yaml:"decel_gain,omitempty"`
	DefaultClearance       *float64 `json:"default_clearance,omitempty" yaml:"default_clearance,omitempty"`
	ClearanceHalfWidthRays *int     `json:"clearance_half_width_rays,omitempty" yaml:"clearance_half_width_rays,omitempty"`

	// Field
	Gamma               *float64 `json:"gamma,omitempty" yaml:"gamma,omitempty"`
	ObstacleThreshold   *float64 `json:"obstacle_threshold,omitempty" yaml:"obstacle_threshold,omitempty"`
	FilterScale         *float64 `json:"filter_scale,omitempty" yaml:"filter_scale,omitempty"`
	FilterSpanWidth     *float64 `json:"filter_span_width,omitempty" yaml:"filter_span_width,omitempty"`
	GapFillNeighbors    *int     `json:"gap_fill_neighbors,omitempty" yaml:"gap_fill_neighbors,omitempty"`
	DetectHalfWidthRays *int     `json:"detect_half_width_rays,omitempty" yaml:"detect_half_width_rays,omitempty"`
	MagnitudeLaw        *string  `json:"magnitude_law,omitempty" yaml:"magnitude_law,omitempty"`
	MagnitudeGain       *float64 `json:"magnitude_gain,omitempty" yaml:"magnitude_gain,omitempty"`

	// Steering
	LookaheadBase     *float64 `json:"lookahead_base,omitempty" yaml:"lookahead_base,omitempty"`
	LookaheadGain     *float64 `json:"lookahead_gain,omitempty" yaml:"lookahead_gain,omitempty"`
	CurvatureExponent *float64 `json:"curvature_exponent,omitempty" yaml:"curvature_exponent,omitempty"`
	SteeringEpsilon   *float64 `json:"steering_epsilon,omitempty" yaml:"steering_epsilon,omitempty"`
	SteeringSpikeCap  *float64 `json:"steering_spike_cap,omitempty" yaml:"steering_spike_cap,omitempty"`
	SteeringJumpCap   *float64 `json:"steering_jump_cap,omitempty" yaml:"steering_jump_cap,omitempty"`

	// Loop
	RateHz           *int     `json:"rate_hz,omitempty" yaml:"rate_hz,omitempty"`
	DefaultIncrement *float64 `json:"default_increment,omitempty" yaml:"default_increment,omitempty"`
	StaleScanTimeout *string  `json:"stale_scan_timeout,omitempty" yaml:"stale_scan_timeout,omitempty"` // duration string like "500ms"
	HistoryEvery     *int     `json:"history_every,omitempty" yaml:"history_every,omitempty"`

	// Waypoints
	WaypointPath      *string `json:"waypoint_path,omitempty" yaml:"waypoint_path,omitempty"`
	WaypointDelimiter *string `json:"waypoint_delimiter,omitempty" yaml:"waypoint_delimiter,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under 1MB.
// Fields omitted from the file retain their default values.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from cmd/planner, internal/config
		"../../../" + DefaultConfigPath,       // from internal/planner/l1scan
		"../../../../" + DefaultConfigPath,    // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"mass", c.Mass},
		{"wheelbase", c.Wheelbase},
		{"gravity", c.Gravity},
		{"mu", c.Mu},
		{"max_speed", c.MaxSpeed},
		{"obstacle_threshold", c.ObstacleThreshold},
		{"filter_scale", c.FilterScale},
		{"default_increment", c.DefaultIncrement},
		{"steering_epsilon", c.SteeringEpsilon},
		{"curvature_exponent", c.CurvatureExponent},
	}
	for _, p := range positive {
		if p.v != nil && !(*p.v > 0) {
			return fmt.Errorf("%s must be positive, got %v", p.name, *p.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"robot_half_width", c.RobotHalfWidth},
		{"min_speed", c.MinSpeed},
		{"reaction_gain", c.ReactionGain},
		{"friction_margin", c.FrictionMargin},
		{"decel_gain", c.DecelGain},
		{"default_clearance", c.DefaultClearance},
		{"gamma", c.Gamma},
		{"filter_span_width", c.FilterSpanWidth},
		{"magnitude_gain", c.MagnitudeGain},
		{"lookahead_base", c.LookaheadBase},
		{"lookahead_gain", c.LookaheadGain},
		{"steering_spike_cap", c.SteeringSpikeCap},
		{"steering_jump_cap", c.SteeringJumpCap},
	}
	for _, p := range nonNegative {
		if p.v != nil && (*p.v < 0 || math.IsNaN(*p.v)) {
			return fmt.Errorf("%s must be non-negative, got %v", p.name, *p.v)
		}
	}

	if c.GetMinSpeed() > c.GetMaxSpeed() {
		return fmt.Errorf("min_speed %v exceeds max_speed %v", c.GetMinSpeed(), c.GetMaxSpeed())
	}

	ints := []struct {
		name string
		v    *int
		min  int
	}{
		{"clearance_half_width_rays", c.ClearanceHalfWidthRays, 0},
		{"gap_fill_neighbors", c.GapFillNeighbors, 1},
		{"detect_half_width_rays", c.DetectHalfWidthRays, 1},
		{"rate_hz", c.RateHz, 1},
		{"history_every", c.HistoryEvery, 1},
	}
	for _, p := range ints {
		if p.v != nil && *p.v < p.min {
			return fmt.Errorf("%s must be at least %d, got %d", p.name, p.min, *p.v)
		}
	}

	if c.MagnitudeLaw != nil {
		switch *c.MagnitudeLaw {
		case MagnitudeLawDepth, MagnitudeLawSpread:
		default:
			return fmt.Errorf("magnitude_law must be %q or %q, got %q", MagnitudeLawDepth, MagnitudeLawSpread, *c.MagnitudeLaw)
		}
	}

	if c.StaleScanTimeout != nil && *c.StaleScanTimeout != "" {
		if _, err := time.ParseDuration(*c.StaleScanTimeout); err != nil {
			return fmt.Errorf("invalid stale_scan_timeout '%s': %w", *c.StaleScanTimeout, err)
		}
	}

	if c.WaypointDelimiter != nil && len([]rune(*c.WaypointDelimiter)) != 1 {
		return fmt.Errorf("waypoint_delimiter must be a single character, got %q", *c.WaypointDelimiter)
	}

	return nil
}

// RequireStartup reports every parameter the planner cannot start without.
func (c *TuningConfig) RequireStartup() error {
	var missing []string
	if c.WaypointPath == nil || strings.TrimSpace(*c.WaypointPath) == "" {
		missing = append(missing, "waypoint_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}
	return nil
}

// GetMass returns the mass value or the default. The controller does not use it.
func (c *TuningConfig) GetMass() float64 {
	if c.Mass == nil {
		return 3.47
	}
	return *c.Mass
}

// GetWheelbase returns the wheelbase value or the default.
func (c *TuningConfig) GetWheelbase() float64 {
	if c.Wheelbase == nil {
		return 0.325
	}
	return *c.Wheelbase
}

// GetRobotHalfWidth returns the robot_half_width value or the default.
func (c *TuningConfig) GetRobotHalfWidth() float64 {
	if c.RobotHalfWidth == nil {
		return 0.125
	}
	return *c.RobotHalfWidth
}

// GetGravity returns the gravity value or the default.
func (c *TuningConfig) GetGravity() float64 {
	if c.Gravity == nil {
		return 9.81
	}
	return *c.Gravity
}

// GetMu returns the mu value or the default.
func (c *TuningConfig) GetMu() float64 {
	if c.Mu == nil {
		return 0.523
	}
	return *c.Mu
}

// GetMaxSpeed returns the max_speed value or the default.
func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return 20.0
	}
	return *c.MaxSpeed
}

// GetMinSpeed returns the min_speed value or the default.
func (c *TuningConfig) GetMinSpeed() float64 {
	if c.MinSpeed == nil {
		return 1.5
	}
	return *c.MinSpeed
}

// GetHighSpeedThreshold returns the high_speed_threshold value or the default.
func (c *TuningConfig) GetHighSpeedThreshold() float64 {
	if c.HighSpeedThreshold == nil {
		return 10.0
	}
	return *c.HighSpeedThreshold
}

// GetReactionGain returns the reaction_gain value or the default.
func (c *TuningConfig) GetReactionGain() float64 {
	if c.ReactionGain == nil {
		return 0.7
	}
	return *c.ReactionGain
}

// GetFrictionMargin returns the friction_margin value or the default.
func (c *TuningConfig) GetFrictionMargin() float64 {
	if c.FrictionMargin == nil {
		return 2.0
	}
	return *c.FrictionMargin
}

// GetDecelGain returns the decel_gain value or the default.
func (c *TuningConfig) GetDecelGain() float64 {
	if c.DecelGain == nil {
		return 0.2
	}
	return *c.DecelGain
}

// GetDefaultClearance returns the default_clearance value or the default.
func (c *TuningConfig) GetDefaultClearance() float64 {
	if c.DefaultClearance == nil {
		return 1.0
	}
	return *c.DefaultClearance
}

// GetClearanceHalfWidthRays returns the clearance_half_width_rays value or the default.
func (c *TuningConfig) GetClearanceHalfWidthRays() int {
	if c.ClearanceHalfWidthRays == nil {
		return 40
	}
	return *c.ClearanceHalfWidthRays
}

// GetGamma returns the gamma value or the default.
func (c *TuningConfig) GetGamma() float64 {
	if c.Gamma == nil {
		return 0.2
	}
	return *c.Gamma
}

// GetObstacleThreshold returns the obstacle_threshold value or the default.
func (c *TuningConfig) GetObstacleThreshold() float64 {
	if c.ObstacleThreshold == nil {
		return 3.0
	}
	return *c.ObstacleThreshold
}

// GetFilterScale returns the filter_scale value or the default.
func (c *TuningConfig) GetFilterScale() float64 {
	if c.FilterScale == nil {
		return 1.1
	}
	return *c.FilterScale
}

// GetFilterSpanWidth returns the filter_span_width value or the default,
// which is the full vehicle width.
func (c *TuningConfig) GetFilterSpanWidth() float64 {
	if c.FilterSpanWidth == nil {
		return 2 * c.GetRobotHalfWidth()
	}
	return *c.FilterSpanWidth
}

// GetGapFillNeighbors returns the gap_fill_neighbors value or the default.
func (c *TuningConfig) GetGapFillNeighbors() int {
	if c.GapFillNeighbors == nil {
		return 20
	}
	return *c.GapFillNeighbors
}

// GetDetectHalfWidthRays returns the detect_half_width_rays value or the default.
func (c *TuningConfig) GetDetectHalfWidthRays() int {
	if c.DetectHalfWidthRays == nil {
		return 180
	}
	return *c.DetectHalfWidthRays
}

// GetMagnitudeLaw returns the magnitude_law value or the default.
func (c *TuningConfig) GetMagnitudeLaw() string {
	if c.MagnitudeLaw == nil || *c.MagnitudeLaw == "" {
		return MagnitudeLawDepth
	}
	return *c.MagnitudeLaw
}

// GetMagnitudeGain returns the magnitude_gain value or the default, e^0.25.
func (c *TuningConfig) GetMagnitudeGain() float64 {
	if c.MagnitudeGain == nil {
		return math.Exp(0.25)
	}
	return *c.MagnitudeGain
}

// GetLookaheadBase returns the lookahead_base value or the default.
func (c *TuningConfig) GetLookaheadBase() float64 {
	if c.LookaheadBase == nil {
		return 0.5
	}
	return *c.LookaheadBase
}

// GetLookaheadGain returns the lookahead_gain value or the default.
func (c *TuningConfig) GetLookaheadGain() float64 {
	if c.LookaheadGain == nil {
		return 0.3
	}
	return *c.LookaheadGain
}

// GetCurvatureExponent returns the curvature_exponent value or the default.
func (c *TuningConfig) GetCurvatureExponent() float64 {
	if c.CurvatureExponent == nil {
		return 1.25
	}
	return *c.CurvatureExponent
}

// GetSteeringEpsilon returns the steering_epsilon value or the default.
func (c *TuningConfig) GetSteeringEpsilon() float64 {
	if c.SteeringEpsilon == nil {
		return 0.001
	}
	return *c.SteeringEpsilon
}

// GetSteeringSpikeCap returns the steering_spike_cap value or the default.
func (c *TuningConfig) GetSteeringSpikeCap() float64 {
	if c.SteeringSpikeCap == nil {
		return 0.5
	}
	return *c.SteeringSpikeCap
}

// GetSteeringJumpCap returns the steering_jump_cap value or the default.
func (c *TuningConfig) GetSteeringJumpCap() float64 {
	if c.SteeringJumpCap == nil {
		return 0.5
	}
	return *c.SteeringJumpCap
}

// GetRateHz returns the rate_hz value or the default.
func (c *TuningConfig) GetRateHz() int {
	if c.RateHz == nil {
		return 100
	}
	return *c.RateHz
}

// GetTickInterval returns the control period derived from rate_hz.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return time.Second / time.Duration(c.GetRateHz())
}

// GetDefaultIncrement returns the default_increment value or the default.
// It is the angular increment assumed until the first scan arrives.
func (c *TuningConfig) GetDefaultIncrement() float64 {
	if c.DefaultIncrement == nil {
		return 0.00435
	}
	return *c.DefaultIncrement
}

// GetStaleScanTimeout parses and returns the StaleScanTimeout as a time.Duration.
func (c *TuningConfig) GetStaleScanTimeout() time.Duration {
	if c.StaleScanTimeout == nil || *c.StaleScanTimeout == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.StaleScanTimeout)
	if err != nil {
		return 500 * time.Millisecond // default on parse error
	}
	return d
}

// GetHistoryEvery returns the history_every value or the default.
func (c *TuningConfig) GetHistoryEvery() int {
	if c.HistoryEvery == nil {
		return 10
	}
	return *c.HistoryEvery
}

// GetWaypointPath returns the waypoint_path value, empty when unset.
func (c *TuningConfig) GetWaypointPath() string {
	if c.WaypointPath == nil {
		return ""
	}
	return *c.WaypointPath
}

// GetWaypointDelimiter returns the waypoint_delimiter value or the default.
func (c *TuningConfig) GetWaypointDelimiter() rune {
	if c.WaypointDelimiter == nil || *c.WaypointDelimiter == "" {
		return ','
	}
	return []rune(*c.WaypointDelimiter)[0]
}
