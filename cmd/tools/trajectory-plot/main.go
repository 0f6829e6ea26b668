// Command trajectory-plot renders a recorded run's driven trajectory against
// its waypoint loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fieldpilot/internal/db"
	"github.com/banshee-data/fieldpilot/internal/planner/waypoints"
	"github.com/banshee-data/fieldpilot/internal/security"
)

var (
	dbPath    = flag.String("db", "fieldpilot.db", "Run history database")
	runID     = flag.String("run", "", "Run ID (default: latest run)")
	wpPath    = flag.String("waypoints", "", "Waypoint file (default: the run's waypoint_path)")
	delimiter = flag.String("delimiter", ",", "Waypoint file delimiter")
	out       = flag.String("out", "", "Output image (.png, .svg, .pdf; default trajectory-<run>.png)")
	size      = flag.Float64("size", 8, "Image width and height in inches")
)

func main() {
	flag.Parse()
	if err := run(context.Background()); err != nil {
		log.Fatalf("trajectory-plot: %v", err)
	}
}

func run(ctx context.Context) error {
	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	var r db.Run
	if *runID == "" {
		r, err = database.LatestRun(ctx)
	} else {
		r, err = database.GetRun(ctx, *runID)
	}
	if err != nil {
		return err
	}

	traj, err := database.Trajectory(ctx, r.ID)
	if err != nil {
		return err
	}
	laps, err := database.Laps(ctx, r.ID)
	if err != nil {
		return err
	}

	src := *wpPath
	if src == "" {
		src = r.WaypointPath
	}
	var path waypoints.Path
	if src != "" {
		delim := []rune(*delimiter)
		if len(delim) != 1 {
			return errors.New("delimiter must be a single character")
		}
		path, err = waypoints.LoadPathFile(src, delim[0])
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			log.Printf("waypoints %s not found; plotting the trajectory only", src)
		}
	}

	dest := outputPath(*out, r.ID)
	if err := security.ValidateExportPath(dest); err != nil {
		return err
	}
	p, err := buildPlot(r, traj, path, len(laps))
	if err != nil {
		return err
	}
	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, dest); err != nil {
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}
	log.Printf("wrote %s: run %s, %d poses, %d laps", dest, r.ID, len(traj), len(laps))
	return nil
}

func outputPath(out, runID string) string {
	if out != "" {
		return out
	}
	return "trajectory-" + security.SanitizeFilename(runID) + ".png"
}

func buildPlot(r db.Run, traj []db.TrajectoryRow, path waypoints.Path, laps int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s (%d laps)", r.ID, laps)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	if path.Len() > 0 {
		pts := make(plotter.XYs, 0, path.Len()+1)
		for _, pt := range path.Points() {
			pts = append(pts, plotter.XY{X: pt[0], Y: pt[1]})
		}
		pts = append(pts, pts[0])
		l, s, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to plot waypoints: %w", err)
		}
		l.Color = color.RGBA{R: 150, G: 150, B: 150, A: 255}
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		s.Radius = vg.Points(1.5)
		p.Add(l, s)
		p.Legend.Add("waypoints", l)
	}

	if len(traj) > 0 {
		pts := make(plotter.XYs, len(traj))
		for i, t := range traj {
			pts[i] = plotter.XY{X: t.X, Y: t.Y}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to plot trajectory: %w", err)
		}
		l.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add("driven", l)
	}
	return p, nil
}
