package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/fieldpilot/internal/monitoring"
	"github.com/banshee-data/fieldpilot/internal/planner/pipeline"
)

// Recorder buffers the loop's telemetry, trajectory and lap records for one
// run and writes them in batches, so the control loop never waits on disk.
type Recorder struct {
	db    *DB
	runID string
	// BatchSize triggers an early flush once this many rows are pending.
	BatchSize int
	// FlushInterval is the longest a row waits before it is written.
	FlushInterval time.Duration

	mu    sync.Mutex
	ticks []pipeline.TickRecord
	poses []pipeline.TrajectorySample
	laps  []pipeline.LapRecord
	kick  chan struct{}
}

// NewRecorder records into run runID.
func NewRecorder(db *DB, runID string) *Recorder {
	return &Recorder{
		db:            db,
		runID:         runID,
		BatchSize:     500,
		FlushInterval: time.Second,
		kick:          make(chan struct{}, 1),
	}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) RecordTick(t pipeline.TickRecord) {
	r.mu.Lock()
	r.ticks = append(r.ticks, t)
	n := len(r.ticks) + len(r.poses)
	r.mu.Unlock()
	r.maybeKick(n)
}

func (r *Recorder) RecordPose(s pipeline.TrajectorySample) {
	r.mu.Lock()
	r.poses = append(r.poses, s)
	n := len(r.ticks) + len(r.poses)
	r.mu.Unlock()
	r.maybeKick(n)
}

func (r *Recorder) RecordLap(l pipeline.LapRecord) {
	r.mu.Lock()
	r.laps = append(r.laps, l)
	r.mu.Unlock()
	r.maybeKick(r.BatchSize)
}

func (r *Recorder) maybeKick(pending int) {
	if pending < r.BatchSize {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run flushes pending rows until ctx is done, then flushes once more.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.Flush(context.Background())
		case <-ticker.C:
		case <-r.kick:
		}
		if err := r.Flush(ctx); err != nil {
			monitoring.Logf("run recorder: %v", err)
		}
	}
}

// Flush writes every pending row in one transaction. On failure the rows
// are kept for the next attempt.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	ticks, poses, laps := r.ticks, r.poses, r.laps
	r.ticks, r.poses, r.laps = nil, nil, nil
	r.mu.Unlock()
	if len(ticks)+len(poses)+len(laps) == 0 {
		return nil
	}

	if err := r.write(ctx, ticks, poses, laps); err != nil {
		r.mu.Lock()
		r.ticks = append(ticks, r.ticks...)
		r.poses = append(poses, r.poses...)
		r.laps = append(laps, r.laps...)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Recorder) write(ctx context.Context, ticks []pipeline.TickRecord, poses []pipeline.TrajectorySample, laps []pipeline.LapRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin flush: %w", err)
	}
	defer tx.Rollback()

	if len(ticks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tick_telemetry (
			run_id, tick, ts_ns, latency_ns, goal_offset, obstacles, clearance,
			clearance_ok, steering, held, speed, current_speed, waypoint_index
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare telemetry insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range ticks {
			if _, err := stmt.ExecContext(ctx, r.runID, t.Tick, t.Time.UnixNano(), int64(t.Latency),
				t.GoalOffset, t.Obstacles, t.Clearance, t.ClearanceOK, t.Steering, t.Held,
				t.Speed, t.CurrentSpeed, t.WaypointIdx); err != nil {
				return fmt.Errorf("failed to insert tick %d: %w", t.Tick, err)
			}
		}
	}

	if len(poses) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO trajectory (run_id, ts_ns, x, y, heading, speed) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trajectory insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range poses {
			if _, err := stmt.ExecContext(ctx, r.runID, p.Time.UnixNano(), p.X, p.Y, p.Heading, p.Speed); err != nil {
				return fmt.Errorf("failed to insert pose: %w", err)
			}
		}
	}

	for _, l := range laps {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO laps (run_id, lap, ts_ns, duration_ns) VALUES (?, ?, ?, ?)`,
			r.runID, l.Lap, l.Time.UnixNano(), int64(l.Duration)); err != nil {
			return fmt.Errorf("failed to insert lap %d: %w", l.Lap, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flush: %w", err)
	}
	return nil
}
