package params

import (
	"fmt"
	"math"
	"strings"
)

// Setting is one parameter assignment within a combination.
type Setting struct {
	Param int
	Value int
}

// Combination is a full assignment of every swept parameter, in spec order.
// Settings are applied to the device in this order.
type Combination []Setting

// Value returns the value assigned to the given parameter index.
func (c Combination) Value(param int) (int, bool) {
	for _, s := range c {
		if s.Param == param {
			return s.Value, true
		}
	}
	return 0, false
}

func (c Combination) String() string {
	var b strings.Builder
	for i, s := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "p%d=%d", s.Param, s.Value)
	}
	return b.String()
}

// Space is the cartesian product of the per-parameter value lists. It is
// never materialized; combinations are computed positionally so an
// interrupted sweep can resume at any index and reproduce exactly the
// combinations it would have visited.
type Space struct {
	specs []Spec
	count uint64
}

// NewSpace validates the specs and computes the total combination count.
// Spec order is preserved: the last spec in the list varies fastest during
// enumeration.
func NewSpace(specs []Spec) (*Space, error) {
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}

	count := uint64(1)
	for _, sp := range specs {
		n := uint64(len(sp.Values))
		if count > math.MaxUint64/n {
			return nil, fmt.Errorf("combination count overflows uint64")
		}
		count *= n
	}

	return &Space{specs: specs, count: count}, nil
}

// Count returns the total number of combinations in the space.
func (s *Space) Count() uint64 {
	return s.count
}

// Specs returns the parameter specs in enumeration order.
func (s *Space) Specs() []Spec {
	return s.specs
}

// Params returns the swept parameter indices in enumeration order.
func (s *Space) Params() []int {
	out := make([]int, len(s.specs))
	for i, sp := range s.specs {
		out[i] = sp.Index
	}
	return out
}

// CombinationAt returns the i-th combination of the space. The index is
// decomposed as a mixed-radix number whose digit bases are the per-parameter
// value counts, with the last spec varying fastest. The same index always
// yields the same combination for a given spec list.
func (s *Space) CombinationAt(i uint64) (Combination, error) {
	if i >= s.count {
		return nil, fmt.Errorf("combination index %d outside space of %d", i, s.count)
	}

	out := make(Combination, len(s.specs))
	rem := i
	for d := len(s.specs) - 1; d >= 0; d-- {
		sp := s.specs[d]
		n := uint64(len(sp.Values))
		out[d] = Setting{Param: sp.Index, Value: sp.Values[rem%n]}
		rem /= n
	}
	return out, nil
}
