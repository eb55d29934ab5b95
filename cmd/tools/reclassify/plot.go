package main

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tunnel.report/internal/classify"
	"github.com/banshee-data/tunnel.report/internal/fsutil"
)

// writePlot renders the window average acceleration of a replay against the
// classifier thresholds as a PNG.
func writePlot(fs fsutil.FileSystem, path string, res Result, th classify.Thresholds) error {
	if len(res.Points) == 0 {
		return fmt.Errorf("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = "Window average acceleration"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Avg |a| (m/s²)"

	avgPts := make(plotter.XYs, len(res.Points))
	for i, pt := range res.Points {
		avgPts[i] = plotter.XY{X: float64(pt.Index), Y: pt.Avg}
	}
	avgLine, err := plotter.NewLine(avgPts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	avgLine.Width = vg.Points(1)
	p.Add(avgLine)
	p.Legend.Add("avg acceleration", avgLine)

	last := float64(res.Points[len(res.Points)-1].Index)
	for _, ref := range []struct {
		label string
		value float64
		color color.RGBA
	}{
		{"tunnel threshold", th.TunnelAcceleration, color.RGBA{R: 200, A: 255}},
		{"still threshold", th.StillAcceleration, color.RGBA{G: 150, A: 255}},
	} {
		line, err := plotter.NewLine(plotter.XYs{{X: 0, Y: ref.value}, {X: last, Y: ref.value}})
		if err != nil {
			return fmt.Errorf("failed to create threshold line: %w", err)
		}
		line.Color = ref.color
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(ref.label, line)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
