// Package params models the synthesizer parameter space under test: the
// per-parameter allowed values and the fixed enumeration of their cartesian
// product that sweep resume depends on.
package params

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
)

const (
	// MaxParamIndex is the highest parameter number the device frame
	// encoding can address: the extended form carries param-255 in a
	// single byte, so 255+255 is the ceiling.
	MaxParamIndex = 510

	// MaxParamValue is the highest value a parameter byte can carry.
	MaxParamValue = 255
)

// Spec describes one tunable parameter: its device index and the ordered
// values the sweep will try for it.
type Spec struct {
	Index  int
	Values []int
}

// LoadSpecs reads parameter specifications from a CSV file with the header
// `param_num,value_spec`. value_spec is either an explicit comma-separated
// list ("0,85,170,255") or a range ("0-255" or "0-255/5"). Rows that cannot
// be parsed are skipped with a warning, matching the tolerant behaviour of
// the bench tooling this replaces; a file yielding no usable specs is an
// error.
func LoadSpecs(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open param specs: %w", err)
	}
	defer f.Close()

	specs, err := readSpecs(f)
	if err != nil {
		return nil, fmt.Errorf("read param specs %s: %w", path, err)
	}
	return specs, nil
}

func readSpecs(r io.Reader) ([]Spec, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // rows are validated individually

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != "param_num" {
		return nil, fmt.Errorf("expected header param_num,value_spec, got %v", header)
	}

	var specs []Spec
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			monitoring.Logf("params: skipping unreadable row %d: %v", line, err)
			continue
		}
		if len(row) < 2 {
			monitoring.Logf("params: skipping short row %d: %v", line, row)
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			monitoring.Logf("params: skipping row %d: bad param_num %q", line, row[0])
			continue
		}
		values, err := ParseValueSpec(row[1])
		if err != nil {
			monitoring.Logf("params: skipping row %d (param %d): %v", line, index, err)
			continue
		}
		specs = append(specs, Spec{Index: index, Values: values})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no usable parameter specs")
	}
	return specs, nil
}

// ParseValueSpec parses a value_spec cell: an explicit comma-separated list
// or a range "lo-hi" / "lo-hi/step" (inclusive).
func ParseValueSpec(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value spec")
	}

	if strings.Contains(s, "-") && !strings.Contains(s, ",") {
		return parseValueRange(s)
	}

	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid value '%s': %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty value spec")
	}
	return out, nil
}

// parseValueRange expands "lo-hi" or "lo-hi/step" into the inclusive value
// list.
func parseValueRange(s string) ([]int, error) {
	step := 1
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		v, err := strconv.Atoi(strings.TrimSpace(s[slash+1:]))
		if err != nil {
			return nil, fmt.Errorf("invalid range step in %q: %w", s, err)
		}
		step = v
		s = s[:slash]
	}
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid range %q", s)
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("invalid range start in %q: %w", s, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("invalid range end in %q: %w", s, err)
	}

	values := generateIntRange(min, max, step)
	if len(values) == 0 {
		return nil, fmt.Errorf("range %q produced no values", s)
	}
	return values, nil
}

// generateIntRange generates ints from min to max (inclusive) stepping by
// step. Returns an empty slice if min > max or step is not positive. The
// count is capped to keep a typo like "0-255/0" from allocating unbounded
// memory.
func generateIntRange(min, max, step int) []int {
	if step <= 0 {
		return nil
	}
	if min > max {
		return nil
	}

	const maxValues = 10000
	expectedCount := (max-min)/step + 1
	if expectedCount > maxValues || expectedCount < 0 {
		return nil
	}

	var result []int
	for v := min; v <= max; v += step {
		result = append(result, v)
	}
	return result
}

// validateSpecs rejects spec lists the device cannot execute: duplicated
// parameter indices, indices or values outside the frame encoding's byte
// ranges, and empty value lists. Runs before any hardware I/O.
func validateSpecs(specs []Spec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no parameter specs")
	}

	seen := make(map[int]bool, len(specs))
	for _, sp := range specs {
		if sp.Index < 0 || sp.Index > MaxParamIndex {
			return fmt.Errorf("param %d: index outside 0-%d", sp.Index, MaxParamIndex)
		}
		if seen[sp.Index] {
			return fmt.Errorf("param %d: duplicate index", sp.Index)
		}
		seen[sp.Index] = true

		if len(sp.Values) == 0 {
			return fmt.Errorf("param %d: no allowed values", sp.Index)
		}
		for _, v := range sp.Values {
			if v < 0 || v > MaxParamValue {
				return fmt.Errorf("param %d: value %d outside 0-%d", sp.Index, v, MaxParamValue)
			}
		}
	}
	return nil
}
