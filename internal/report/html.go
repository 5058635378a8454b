package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/harmonia-data/patchsweep/internal/results"
)

// maxChartPoints bounds the plotted rows so the page stays responsive for
// large sweeps; longer runs are downsampled by stride.
const maxChartPoints = 8000

// RenderHTML writes the report page (level trace plus outcome counts) to w.
func RenderHTML(w io.Writer, rows []results.Row, threshold float64) error {
	rows = sortedByIndex(rows)

	page := components.NewPage()
	page.AddCharts(levelsLine(rows, threshold), statusBar(rows))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report page: %w", err)
	}
	return nil
}

// WriteHTML renders the report page to a file.
func WriteHTML(path string, rows []results.Row, threshold float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := RenderHTML(f, rows, threshold); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func levelsLine(rows []results.Row, threshold float64) *charts.Line {
	stride := 1
	if len(rows) > maxChartPoints {
		stride = int(math.Ceil(float64(len(rows)) / float64(maxChartPoints)))
	}

	x := make([]string, 0, len(rows)/stride+1)
	levels := make([]opts.LineData, 0, len(rows)/stride+1)
	rule := make([]opts.LineData, 0, len(rows)/stride+1)
	for i := 0; i < len(rows); i += stride {
		x = append(x, strconv.FormatUint(rows[i].Index, 10))
		levels = append(levels, opts.LineData{Value: rows[i].RMS})
		rule = append(rule, opts.LineData{Value: threshold})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Sweep Report", Theme: "dark", Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Measured level per combination", Subtitle: fmt.Sprintf("rows=%d stride=%d threshold=%g", len(rows), stride, threshold)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "combination index"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "RMS (normalized)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("rms", levels).
		AddSeries("threshold", rule)
	return line
}

func statusBar(rows []results.Row) *charts.Bar {
	var audible, silent, errs int
	for _, row := range rows {
		switch row.Status {
		case results.StatusAudible:
			audible++
		case results.StatusSilentSkipped:
			silent++
		default:
			errs++
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "600px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Outcomes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{
		string(results.StatusAudible),
		string(results.StatusSilentSkipped),
		string(results.StatusError),
	}).AddSeries("combinations", []opts.BarData{
		{Value: audible},
		{Value: silent},
		{Value: errs},
	}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}
