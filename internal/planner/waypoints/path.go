package waypoints

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrEmptyPath is returned when a waypoint source holds no points.
var ErrEmptyPath = errors.New("waypoint path is empty")

// Path is an immutable closed loop of waypoints in the map frame.
// The last point connects back to the first.
type Path struct {
	points orb.LineString
}

// NewPath copies pts into a Path.
func NewPath(pts []orb.Point) (Path, error) {
	if len(pts) == 0 {
		return Path{}, ErrEmptyPath
	}
	ls := make(orb.LineString, len(pts))
	copy(ls, pts)
	return Path{points: ls}, nil
}

// LoadPath reads waypoints from delimited text: the first two numeric
// columns are x and y, further columns are ignored. Blank lines and lines
// starting with '#' are skipped, as is a leading header row.
func LoadPath(r io.Reader, delimiter rune) (Path, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var pts []orb.Point
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Path{}, fmt.Errorf("failed to read waypoint row %d: %w", row, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 2 {
			return Path{}, fmt.Errorf("waypoint row %d: need at least 2 columns, got %d", row, len(rec))
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errX != nil || errY != nil {
			if len(pts) == 0 && row == 1 {
				continue // header
			}
			return Path{}, fmt.Errorf("waypoint row %d: invalid coordinates %q, %q", row, rec[0], rec[1])
		}
		pts = append(pts, orb.Point{x, y})
	}
	return NewPath(pts)
}

// LoadPathFile opens path and parses it with LoadPath.
func LoadPathFile(path string, delimiter rune) (Path, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Path{}, fmt.Errorf("failed to open waypoint file: %w", err)
	}
	defer f.Close()

	p, err := LoadPath(f, delimiter)
	if err != nil {
		return Path{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Len returns the number of waypoints.
func (p Path) Len() int {
	return len(p.points)
}

// At returns waypoint i, wrapping modulo Len.
func (p Path) At(i int) orb.Point {
	n := len(p.points)
	return p.points[((i%n)+n)%n]
}

// Points returns a copy of the waypoints.
func (p Path) Points() []orb.Point {
	out := make([]orb.Point, len(p.points))
	copy(out, p.points)
	return out
}

// Length returns the loop length including the closing segment.
func (p Path) Length() float64 {
	if len(p.points) < 2 {
		return 0
	}
	ring := append(orb.Ring(nil), p.points...)
	ring = append(ring, p.points[0])
	return planar.Length(ring)
}

// Bound returns the bounding box of the loop.
func (p Path) Bound() orb.Bound {
	return p.points.Bound()
}
