package serialmux

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldpilot/internal/planner/l4drive"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
)

// ErrBadLine is returned for link lines that cannot be decoded.
var ErrBadLine = errors.New("malformed link line")

// Line kinds reported by ClassifyLine.
const (
	LineOdometry = "odometry"
	LineDrive    = "drive"
	LineUnknown  = "unknown"
)

const (
	odomPrefix  = "odom,"
	drivePrefix = "drive,"
)

// ClassifyLine returns the kind of a line read from the link.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, odomPrefix):
		return LineOdometry
	case strings.HasPrefix(line, drivePrefix):
		return LineDrive
	case strings.HasPrefix(line, "{") && strings.Contains(line, `"qw"`):
		return LineOdometry
	}
	return LineUnknown
}

type odomJSON struct {
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	QX      float64  `json:"qx"`
	QY      float64  `json:"qy"`
	QZ      *float64 `json:"qz"`
	QW      *float64 `json:"qw"`
	Speed   *float64 `json:"speed"`
	YawRate float64  `json:"yaw_rate"`
}

// ParseOdometry decodes an odometry report in either wire form:
//
//	{"x":1,"y":2,"qx":0,"qy":0,"qz":0,"qw":1,"speed":3.5,"yaw_rate":0.1}
//	odom,1,2,0,0,0,1,3.5,0.1
//
// The heading is the yaw of the orientation quaternion.
func ParseOdometry(line string) (pipeline.Odometry, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var m odomJSON
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return pipeline.Odometry{}, fmt.Errorf("%w: %v", ErrBadLine, err)
		}
		if m.X == nil || m.Y == nil || m.QZ == nil || m.QW == nil || m.Speed == nil {
			return pipeline.Odometry{}, fmt.Errorf("%w: odometry needs x, y, qz, qw and speed", ErrBadLine)
		}
		return odometry(*m.X, *m.Y, m.QX, m.QY, *m.QZ, *m.QW, *m.Speed, m.YawRate)
	}

	if !strings.HasPrefix(line, odomPrefix) {
		return pipeline.Odometry{}, fmt.Errorf("%w: not an odometry line", ErrBadLine)
	}
	v, err := parseFields(line[len(odomPrefix):], 8)
	if err != nil {
		return pipeline.Odometry{}, err
	}
	return odometry(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7])
}

func odometry(x, y, qx, qy, qz, qw, speed, yawRate float64) (pipeline.Odometry, error) {
	for _, f := range []float64{x, y, qx, qy, qz, qw, speed, yawRate} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return pipeline.Odometry{}, fmt.Errorf("%w: non-finite value", ErrBadLine)
		}
	}
	if qx == 0 && qy == 0 && qz == 0 && qw == 0 {
		return pipeline.Odometry{}, fmt.Errorf("%w: zero quaternion", ErrBadLine)
	}
	return pipeline.Odometry{
		Pose: waypoints.Pose{
			X:       x,
			Y:       y,
			Heading: waypoints.HeadingFromQuaternion(qx, qy, qz, qw),
		},
		Speed:   speed,
		YawRate: yawRate,
	}, nil
}

// FormatOdometry renders o as a CSV odometry line, with the heading encoded
// as a yaw-only quaternion.
func FormatOdometry(o pipeline.Odometry) string {
	qz := math.Sin(o.Pose.Heading / 2)
	qw := math.Cos(o.Pose.Heading / 2)
	return fmt.Sprintf("odom,%.4f,%.4f,0,0,%.6f,%.6f,%.4f,%.4f",
		o.Pose.X, o.Pose.Y, qz, qw, o.Speed, o.YawRate)
}

// FormatDrive renders a drive command line.
func FormatDrive(c l4drive.Command) string {
	return fmt.Sprintf("drive,%.4f,%.4f,%.4f,%.4f", c.SteeringAngle, c.Speed, c.Acceleration, c.Jerk)
}

// ParseDrive decodes a drive command line.
func ParseDrive(line string) (l4drive.Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, drivePrefix) {
		return l4drive.Command{}, fmt.Errorf("%w: not a drive line", ErrBadLine)
	}
	v, err := parseFields(line[len(drivePrefix):], 4)
	if err != nil {
		return l4drive.Command{}, err
	}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return l4drive.Command{}, fmt.Errorf("%w: non-finite value", ErrBadLine)
		}
	}
	return l4drive.Command{SteeringAngle: v[0], Speed: v[1], Acceleration: v[2], Jerk: v[3]}, nil
}

func parseFields(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrBadLine, n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrBadLine, i+1, err)
		}
		out[i] = f
	}
	return out, nil
}
