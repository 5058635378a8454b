package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harmonia-data/patchsweep/internal/results"
)

func sampleRows() []results.Row {
	return []results.Row{
		{Index: 0, RMS: 0.2, Status: results.StatusAudible},
		{Index: 1, RMS: 0.4, Status: results.StatusAudible},
		{Index: 2, RMS: 0.0, Status: results.StatusSilentSkipped},
		{Index: 3, RMS: 0.0, Status: results.StatusError},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRows())

	if s.Rows != 4 {
		t.Errorf("expected 4 rows, got %d", s.Rows)
	}
	if s.Audible != 2 || s.Silent != 1 || s.Errors != 1 {
		t.Errorf("expected 2/1/1 audible/silent/errors, got %d/%d/%d", s.Audible, s.Silent, s.Errors)
	}

	// Levels cover the measured rows only: 0.2, 0.4, 0.0.
	if math.Abs(s.MeanRMS-0.2) > 1e-9 {
		t.Errorf("expected mean 0.2, got %f", s.MeanRMS)
	}
	if math.Abs(s.StdDevRMS-0.2) > 1e-9 {
		t.Errorf("expected stddev 0.2, got %f", s.StdDevRMS)
	}
	if s.MaxRMS != 0.4 || s.LoudestIndex != 1 {
		t.Errorf("expected loudest index 1 at 0.4, got index %d at %f", s.LoudestIndex, s.MaxRMS)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Rows != 0 || s.MeanRMS != 0 || s.StdDevRMS != 0 {
		t.Errorf("expected zero summary, got %+v", s)
	}
}

func TestSummarizeSingleMeasuredRow(t *testing.T) {
	s := Summarize([]results.Row{{Index: 7, RMS: 0.3, Status: results.StatusAudible}})
	if math.Abs(s.MeanRMS-0.3) > 1e-9 {
		t.Errorf("expected mean 0.3, got %f", s.MeanRMS)
	}
	if s.StdDevRMS != 0 {
		t.Errorf("expected zero stddev for one row, got %f", s.StdDevRMS)
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, sampleRows(), 0.01); err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "Measured level per combination") {
		t.Error("expected the level chart title in the page")
	}
	if !strings.Contains(html, "Outcomes") {
		t.Error("expected the outcomes chart title in the page")
	}
	if !strings.Contains(html, "silent-skipped") {
		t.Error("expected status labels in the page")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := WriteArtifacts(dir, sampleRows(), 0.01); err != nil {
		t.Fatalf("WriteArtifacts failed: %v", err)
	}

	htmlPath := filepath.Join(dir, HTMLName)
	if fi, err := os.Stat(htmlPath); err != nil || fi.Size() == 0 {
		t.Errorf("expected a non-empty %s: %v", HTMLName, err)
	}

	pngPath := filepath.Join(dir, PNGName)
	raw, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", PNGName, err)
	}
	if len(raw) < 8 || !bytes.Equal(raw[:8], []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("expected a PNG signature in the levels plot")
	}
}

func TestWritePNGEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.png")
	if err := WritePNG(path, nil, 0.01); err != nil {
		t.Fatalf("WritePNG with no rows failed: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("expected a non-empty plot file: %v", err)
	}
}
