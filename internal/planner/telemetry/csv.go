// Package telemetry writes the loop's per-tick records and trajectory as CSV
// logs for offline analysis.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

var (
	tickHeader = []string{
		"time", "tick", "latency_ms", "goal_offset", "obstacles", "clearance",
		"clearance_ok", "steering", "held", "speed", "current_speed", "waypoint",
	}
	trajectoryHeader = []string{"time", "x", "y", "heading", "speed"}
)

// csvLog is a header-first CSV stream safe for concurrent writers.
type csvLog struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	err    error
}

func newCSVLog(w io.Writer, header []string) *csvLog {
	l := &csvLog{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	l.err = l.w.Write(header)
	return l
}

func (l *csvLog) write(row []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	l.err = l.w.Write(row)
}

// Flush pushes buffered rows to the underlying writer and returns the first
// write error seen.
func (l *csvLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if l.err == nil {
		l.err = l.w.Error()
	}
	return l.err
}

// Close flushes and closes the underlying writer if it is closable.
func (l *csvLog) Close() error {
	err := l.Flush()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// TickLog is a pipeline.TelemetrySink writing one row per planned tick.
type TickLog struct{ *csvLog }

// NewTickLog writes the header to w.
func NewTickLog(w io.Writer) *TickLog {
	return &TickLog{newCSVLog(w, tickHeader)}
}

func (l *TickLog) RecordTick(r pipeline.TickRecord) {
	l.write([]string{
		formatTime(r.Time),
		strconv.FormatUint(r.Tick, 10),
		formatFloat(float64(r.Latency) / float64(time.Millisecond)),
		strconv.Itoa(r.GoalOffset),
		strconv.Itoa(r.Obstacles),
		formatFloat(r.Clearance),
		strconv.FormatBool(r.ClearanceOK),
		formatFloat(r.Steering),
		strconv.FormatBool(r.Held),
		formatFloat(r.Speed),
		formatFloat(r.CurrentSpeed),
		strconv.Itoa(r.WaypointIdx),
	})
}

// TrajectoryLog is a pipeline.TrajectorySink writing one row per pose.
type TrajectoryLog struct{ *csvLog }

// NewTrajectoryLog writes the header to w.
func NewTrajectoryLog(w io.Writer) *TrajectoryLog {
	return &TrajectoryLog{newCSVLog(w, trajectoryHeader)}
}

func (l *TrajectoryLog) RecordPose(s pipeline.TrajectorySample) {
	l.write([]string{
		formatTime(s.Time),
		formatFloat(s.X),
		formatFloat(s.Y),
		formatFloat(s.Heading),
		formatFloat(s.Speed),
	})
}

// Logs holds the CSV logs of one run.
type Logs struct {
	Ticks      *TickLog
	Trajectory *TrajectoryLog
}

// Create opens ticks-<stamp>.csv and trajectory-<stamp>.csv in dir.
func Create(dir string, stamp time.Time) (*Logs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry dir: %w", err)
	}
	suffix := stamp.UTC().Format("20060102T150405Z")
	tf, err := os.Create(filepath.Join(dir, "ticks-"+suffix+".csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tick log: %w", err)
	}
	pf, err := os.Create(filepath.Join(dir, "trajectory-"+suffix+".csv"))
	if err != nil {
		tf.Close()
		return nil, fmt.Errorf("failed to create trajectory log: %w", err)
	}
	return &Logs{Ticks: NewTickLog(tf), Trajectory: NewTrajectoryLog(pf)}, nil
}

// Flush flushes both logs.
func (l *Logs) Flush() error {
	err := l.Ticks.Flush()
	if perr := l.Trajectory.Flush(); err == nil {
		err = perr
	}
	return err
}

// Close flushes and closes both logs.
func (l *Logs) Close() error {
	err := l.Ticks.Close()
	if perr := l.Trajectory.Close(); err == nil {
		err = perr
	}
	return err
}
