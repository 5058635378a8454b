package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/harmonia-data/patchsweep/internal/results"
)

// WritePNG renders the per-index level trace with the silence threshold
// drawn as a dashed rule.
func WritePNG(path string, rows []results.Row, threshold float64) error {
	rows = sortedByIndex(rows)

	p := plot.New()
	p.Title.Text = "Sweep levels"
	p.X.Label.Text = "Combination index"
	p.Y.Label.Text = "RMS (normalized)"

	pts := make(plotter.XYs, 0, len(rows))
	maxX := 1.0
	for _, row := range rows {
		x := float64(row.Index)
		pts = append(pts, plotter.XY{X: x, Y: row.RMS})
		if x > maxX {
			maxX = x
		}
	}

	levels, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("levels line: %w", err)
	}
	levels.Color = color.RGBA{R: 0x1f, G: 0x9e, B: 0x89, A: 255}
	levels.Width = vg.Points(1)
	p.Add(levels)
	p.Legend.Add("rms", levels)

	rule, err := plotter.NewLine(plotter.XYs{{X: 0, Y: threshold}, {X: maxX, Y: threshold}})
	if err != nil {
		return fmt.Errorf("threshold line: %w", err)
	}
	rule.Color = color.RGBA{R: 0xff, G: 0x52, B: 0x52, A: 255}
	rule.Width = vg.Points(1)
	rule.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(rule)
	p.Legend.Add("threshold", rule)

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save levels plot: %w", err)
	}
	return nil
}
