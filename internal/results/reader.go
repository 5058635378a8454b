package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
)

// Row is one parsed result row.
type Row struct {
	Index     uint64
	Timestamp time.Time
	Params    map[int]int
	RMS       float64
	Status    Status
}

// ResumeIndex returns the next combination index to run: one past the
// highest index recorded in the store, or 0 when the store is missing or
// empty. Rows whose index cannot be parsed are ignored with a warning, so a
// partially corrupted store resumes past its last good row rather than
// refusing to run.
func ResumeIndex(path string) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open results store %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var (
		max   uint64
		found bool
	)
	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			monitoring.Logf("results: skipping unreadable row %d: %v", line, err)
			continue
		}
		if len(row) == 0 || row[0] == "index" {
			continue
		}
		idx, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			monitoring.Logf("results: skipping row %d: bad index %q", line, row[0])
			continue
		}
		if !found || idx > max {
			max = idx
			found = true
		}
	}

	if !found {
		return 0, nil
	}
	return max + 1, nil
}

// ReadAll parses the store into rows in file order. Malformed rows are
// skipped with a warning.
func ReadAll(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results store %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results header from %s: %w", path, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, fmt.Errorf("results store %s: %w", path, err)
	}

	var rows []Row
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			monitoring.Logf("results: skipping unreadable row %d: %v", line, err)
			continue
		}
		parsed, err := parseRow(row, cols)
		if err != nil {
			monitoring.Logf("results: skipping row %d: %v", line, err)
			continue
		}
		rows = append(rows, parsed)
	}
	return rows, nil
}

// columnMap locates the store's fixed columns and the parameter columns by
// position.
type columnMap struct {
	index     int
	timestamp int
	rms       int
	status    int
	params    map[int]int // param index -> column position
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{index: -1, timestamp: -1, rms: -1, status: -1, params: make(map[int]int)}
	for pos, name := range header {
		switch {
		case name == "index":
			cols.index = pos
		case name == "timestamp":
			cols.timestamp = pos
		case name == "rms":
			cols.rms = pos
		case name == "status":
			cols.status = pos
		case strings.HasPrefix(name, "param_"):
			n, err := strconv.Atoi(strings.TrimPrefix(name, "param_"))
			if err != nil {
				return cols, fmt.Errorf("unparseable column %q", name)
			}
			cols.params[n] = pos
		}
	}
	if cols.index < 0 || cols.timestamp < 0 || cols.status < 0 {
		return cols, fmt.Errorf("header missing required columns: %v", header)
	}
	return cols, nil
}

func parseRow(row []string, cols columnMap) (Row, error) {
	get := func(pos int) (string, bool) {
		if pos < 0 || pos >= len(row) {
			return "", false
		}
		return row[pos], true
	}

	out := Row{Params: make(map[int]int, len(cols.params))}

	raw, ok := get(cols.index)
	if !ok {
		return out, fmt.Errorf("short row")
	}
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return out, fmt.Errorf("bad index %q", raw)
	}
	out.Index = idx

	if raw, ok := get(cols.timestamp); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.Timestamp = ts
		}
	}
	if raw, ok := get(cols.rms); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out.RMS = v
		}
	}
	if raw, ok := get(cols.status); ok {
		out.Status = Status(raw)
	}
	for n, pos := range cols.params {
		raw, ok := get(pos)
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return out, fmt.Errorf("bad value %q for param %d", raw, n)
		}
		out.Params[n] = v
	}
	return out, nil
}
