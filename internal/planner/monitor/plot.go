package monitor

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/fieldpilot/internal/units"
)

var (
	colorRepulsive  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorAttractive = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorTotal      = color.RGBA{A: 255}
	colorCommanded  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorCurrent    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func addSeries(p *plot.Plot, name string, values []float64, c color.Color) error {
	if len(values) == 0 {
		return nil
	}
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build %s line: %w", name, err)
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

// RenderHistoryPNG draws the goal-ray field series above the speed series,
// in speedUnit, and writes the figure as PNG.
func RenderHistoryPNG(w io.Writer, h HistorySnapshot, speedUnit string) error {
	pf := plot.New()
	pf.Title.Text = "Field at goal ray"
	pf.X.Label.Text = "Sample"
	pf.Y.Label.Text = "Field"
	pf.Legend.Top = true

	ps := plot.New()
	ps.Title.Text = "Speed"
	ps.X.Label.Text = "Sample"
	ps.Y.Label.Text = units.Label(speedUnit)
	ps.Legend.Top = true

	for _, s := range []struct {
		p      *plot.Plot
		name   string
		values []float64
		c      color.Color
	}{
		{pf, "repulsive", h.Repulsive, colorRepulsive},
		{pf, "attractive", h.Attractive, colorAttractive},
		{pf, "total", h.Total, colorTotal},
		{ps, "commanded", units.ConvertSpeeds(h.Commanded, speedUnit), colorCommanded},
		{ps, "current", units.ConvertSpeeds(h.CurrentSpeed, speedUnit), colorCurrent},
	} {
		if err := addSeries(s.p, s.name, s.values, s.c); err != nil {
			return err
		}
	}

	img := vgimg.New(9*vg.Inch, 7*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadTop: vg.Points(4), PadBottom: vg.Points(4), PadY: vg.Points(12)}
	canvases := plot.Align([][]*plot.Plot{{pf}, {ps}}, tiles, dc)
	pf.Draw(canvases[0][0])
	ps.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode history png: %w", err)
	}
	return nil
}
