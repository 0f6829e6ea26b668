package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one execution of the planner.
type Run struct {
	ID            string     `json:"run_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Version       string     `json:"version"`
	WaypointPath  string     `json:"waypoint_path"`
	WaypointCount int        `json:"waypoint_count"`
	ConfigJSON    string     `json:"config_json"`
}

// TrajectoryRow is one stored pose sample.
type TrajectoryRow struct {
	Time    time.Time
	X       float64
	Y       float64
	Heading float64
	Speed   float64
}

// LapRow is one stored lap.
type LapRow struct {
	Lap      int
	Time     time.Time
	Duration time.Duration
}

// StartRun records a new run and assigns its ID.
func (db *DB) StartRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.ConfigJSON == "" {
		r.ConfigJSON = "{}"
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, version, waypoint_path, waypoint_count, config_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.Version, r.WaypointPath, r.WaypointCount, r.ConfigJSON)
	if err != nil {
		return Run{}, fmt.Errorf("failed to start run: %w", err)
	}
	return r, nil
}

// FinishRun stamps the end time of a run.
func (db *DB) FinishRun(ctx context.Context, id string, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE runs SET ended_at = ? WHERE run_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `run_id, started_at, ended_at, version, waypoint_path, waypoint_count, config_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (Run, error) {
	var (
		r       Run
		started int64
		ended   sql.NullInt64
	)
	if err := s.Scan(&r.ID, &started, &ended, &r.Version, &r.WaypointPath, &r.WaypointCount, &r.ConfigJSON); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started)
	if ended.Valid {
		t := time.Unix(0, ended.Int64)
		r.EndedAt = &t
	}
	return r, nil
}

// GetRun looks up one run.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun(ctx context.Context) (Run, error) {
	r, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load latest run: %w", err)
	}
	return r, nil
}

// Runs lists up to limit runs, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trajectory returns the stored poses of a run in time order.
func (db *DB) Trajectory(ctx context.Context, runID string) ([]TrajectoryRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ts_ns, x, y, heading, speed FROM trajectory WHERE run_id = ? ORDER BY ts_ns`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trajectory: %w", err)
	}
	defer rows.Close()

	var out []TrajectoryRow
	for rows.Next() {
		var (
			ts  int64
			row TrajectoryRow
		)
		if err := rows.Scan(&ts, &row.X, &row.Y, &row.Heading, &row.Speed); err != nil {
			return nil, err
		}
		row.Time = time.Unix(0, ts)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Laps returns the laps of a run in order.
func (db *DB) Laps(ctx context.Context, runID string) ([]LapRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT lap, ts_ns, duration_ns FROM laps WHERE run_id = ? ORDER BY lap`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load laps: %w", err)
	}
	defer rows.Close()

	var out []LapRow
	for rows.Next() {
		var (
			ts, d int64
			row   LapRow
		)
		if err := rows.Scan(&row.Lap, &ts, &d); err != nil {
			return nil, err
		}
		row.Time = time.Unix(0, ts)
		row.Duration = time.Duration(d)
		out = append(out, row)
	}
	return out, rows.Err()
}

// TickCount returns how many telemetry rows a run has.
func (db *DB) TickCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tick_telemetry WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
