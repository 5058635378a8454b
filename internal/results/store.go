// Package results persists sweep outcomes to the append-only CSV store and
// derives the resume point from it. The CSV is the system of record: the
// session survives restarts only through this file.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harmonia-data/patchsweep/internal/params"
)

// Status records how a combination ended.
type Status string

const (
	// StatusAudible means the clip cleared the silence threshold and its
	// WAV files were kept.
	StatusAudible Status = "audible"

	// StatusSilentSkipped means the clip was silent; no files are written
	// for it.
	StatusSilentSkipped Status = "silent-skipped"

	// StatusError means the combination failed somewhere in the pipeline.
	StatusError Status = "error"
)

// Record is one finished combination.
type Record struct {
	Index     uint64
	Timestamp time.Time
	Combo     params.Combination
	RMS       float64
	Status    Status
}

// Header returns the store's column layout for the given parameter indices:
// index, timestamp, one param_<n> column per swept parameter, rms, status.
func Header(paramCols []int) []string {
	header := []string{"index", "timestamp"}
	for _, n := range paramCols {
		header = append(header, "param_"+strconv.Itoa(n))
	}
	return append(header, "rms", "status")
}

// Store appends result rows to the CSV file. Every Append is flushed and
// synced before it returns so a crash never loses an acknowledged row.
type Store struct {
	path    string
	columns []int
	f       *os.File
	w       *csv.Writer
}

// Open opens the store for appending, creating it with a header when absent.
// An existing file must carry the exact header the parameter columns imply;
// anything else would silently misalign values under the wrong parameters.
func Open(path string, paramCols []int) (*Store, error) {
	want := Header(paramCols)

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open results store %s: %w", path, err)
	}

	s := &Store{path: path, columns: paramCols, f: f, w: csv.NewWriter(f)}
	if existing == nil {
		if err := s.w.Write(want); err != nil {
			f.Close()
			return nil, fmt.Errorf("write results header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush results header: %w", err)
		}
	} else if !equalHeader(existing, want) {
		f.Close()
		return nil, fmt.Errorf("results store %s has header %v, want %v", path, existing, want)
	}
	return s, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open results store %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results header from %s: %w", path, err)
	}
	return header, nil
}

func equalHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Append writes one record and makes it durable.
func (s *Store) Append(rec Record) error {
	row := make([]string, 0, len(s.columns)+4)
	row = append(row, strconv.FormatUint(rec.Index, 10))
	row = append(row, rec.Timestamp.Format(time.RFC3339Nano))
	for _, col := range s.columns {
		v, ok := rec.Combo.Value(col)
		if !ok {
			return fmt.Errorf("record %d: combination missing param %d", rec.Index, col)
		}
		row = append(row, strconv.Itoa(v))
	}
	row = append(row, fmt.Sprintf("%.6f", rec.RMS))
	row = append(row, string(rec.Status))

	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("append result %d: %w", rec.Index, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush result %d: %w", rec.Index, err)
	}
	return s.f.Sync()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// RawWAVPath returns where the full capture for a combination index lives.
func RawWAVPath(dir string, index uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.wav", index))
}

// TestWAVPath returns where the trimmed evaluation window for a combination
// index lives.
func TestWAVPath(dir string, index uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d_test.wav", index))
}
