// Package report renders post-run artifacts from the results CSV: an HTML
// page of interactive charts and a PNG of the per-index level trace. It only
// reads the CSV, so artifacts can be regenerated at any time.
package report

import (
	"fmt"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/harmonia-data/patchsweep/internal/results"
)

// Artifact filenames, written next to the results CSV.
const (
	HTMLName = "report.html"
	PNGName  = "levels.png"
)

// Summary holds the headline numbers for one sweep's results.
type Summary struct {
	Rows    int
	Audible int
	Silent  int
	Errors  int

	// Level statistics cover rows with a measured level; error rows carry
	// no measurement and are excluded.
	MeanRMS      float64
	StdDevRMS    float64
	MaxRMS       float64
	LoudestIndex uint64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d rows (%d audible, %d silent, %d errors), mean rms %.4f (stddev %.4f), loudest index %d at %.4f",
		s.Rows, s.Audible, s.Silent, s.Errors, s.MeanRMS, s.StdDevRMS, s.LoudestIndex, s.MaxRMS)
}

// Summarize computes per-status counts and level statistics.
func Summarize(rows []results.Row) Summary {
	s := Summary{Rows: len(rows)}
	levels := make([]float64, 0, len(rows))
	for _, row := range rows {
		switch row.Status {
		case results.StatusAudible:
			s.Audible++
		case results.StatusSilentSkipped:
			s.Silent++
		default:
			s.Errors++
			continue
		}
		levels = append(levels, row.RMS)
		if row.RMS > s.MaxRMS {
			s.MaxRMS = row.RMS
			s.LoudestIndex = row.Index
		}
	}
	if len(levels) > 0 {
		s.MeanRMS = stat.Mean(levels, nil)
	}
	if len(levels) > 1 {
		s.StdDevRMS = stat.StdDev(levels, nil)
	}
	return s
}

// WriteArtifacts renders report.html and levels.png into dir.
func WriteArtifacts(dir string, rows []results.Row, threshold float64) error {
	if err := WriteHTML(filepath.Join(dir, HTMLName), rows, threshold); err != nil {
		return err
	}
	return WritePNG(filepath.Join(dir, PNGName), rows, threshold)
}

// sortedByIndex returns a copy ordered by combination index. Stores written
// by the sweep are already ordered, but hand-edited or merged CSVs may not
// be.
func sortedByIndex(rows []results.Row) []results.Row {
	out := make([]results.Row, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
