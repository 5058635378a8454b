package params

import (
	"testing"
)

func twoParamSpace(t *testing.T) *Space {
	t.Helper()
	space, err := NewSpace([]Spec{
		{Index: 0, Values: []int{0, 128, 255}},
		{Index: 1, Values: []int{0, 64}},
	})
	if err != nil {
		t.Fatalf("NewSpace returned error: %v", err)
	}
	return space
}

func TestSpaceCount(t *testing.T) {
	space := twoParamSpace(t)
	if space.Count() != 6 {
		t.Errorf("Expected 6 combinations, got %d", space.Count())
	}
}

func TestCombinationAt(t *testing.T) {
	space := twoParamSpace(t)

	// Last spec varies fastest.
	want := []Combination{
		{{Param: 0, Value: 0}, {Param: 1, Value: 0}},
		{{Param: 0, Value: 0}, {Param: 1, Value: 64}},
		{{Param: 0, Value: 128}, {Param: 1, Value: 0}},
		{{Param: 0, Value: 128}, {Param: 1, Value: 64}},
		{{Param: 0, Value: 255}, {Param: 1, Value: 0}},
		{{Param: 0, Value: 255}, {Param: 1, Value: 64}},
	}

	for i, expected := range want {
		got, err := space.CombinationAt(uint64(i))
		if err != nil {
			t.Fatalf("CombinationAt(%d) returned error: %v", i, err)
		}
		if got.String() != expected.String() {
			t.Errorf("CombinationAt(%d) = %s, want %s", i, got, expected)
		}
	}
}

func TestCombinationAtOutOfRange(t *testing.T) {
	space := twoParamSpace(t)
	if _, err := space.CombinationAt(6); err == nil {
		t.Error("Expected error for index == count")
	}
	if _, err := space.CombinationAt(1 << 40); err == nil {
		t.Error("Expected error for index far past count")
	}
}

func TestCombinationAtBijection(t *testing.T) {
	space, err := NewSpace([]Spec{
		{Index: 2, Values: []int{0, 1, 2}},
		{Index: 9, Values: []int{10, 20, 30, 40}},
		{Index: 100, Values: []int{0, 255}},
	})
	if err != nil {
		t.Fatalf("NewSpace returned error: %v", err)
	}
	if space.Count() != 24 {
		t.Fatalf("Expected 24 combinations, got %d", space.Count())
	}

	seen := make(map[string]uint64)
	for i := uint64(0); i < space.Count(); i++ {
		combo, err := space.CombinationAt(i)
		if err != nil {
			t.Fatalf("CombinationAt(%d) returned error: %v", i, err)
		}
		key := combo.String()
		if prev, dup := seen[key]; dup {
			t.Errorf("Combination %s produced by both index %d and %d", key, prev, i)
		}
		seen[key] = i
	}
	if len(seen) != 24 {
		t.Errorf("Expected 24 distinct combinations, got %d", len(seen))
	}
}

func TestCombinationAtDeterministic(t *testing.T) {
	space := twoParamSpace(t)
	first, err := space.CombinationAt(3)
	if err != nil {
		t.Fatalf("CombinationAt returned error: %v", err)
	}
	second, err := space.CombinationAt(3)
	if err != nil {
		t.Fatalf("CombinationAt returned error: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("Same index produced different combinations: %s vs %s", first, second)
	}
}

func TestNewSpaceOverflow(t *testing.T) {
	values := make([]int, 256)
	for i := range values {
		values[i] = i
	}
	specs := make([]Spec, 8)
	for i := range specs {
		specs[i] = Spec{Index: i, Values: values}
	}

	// 256^8 does not fit in uint64.
	if _, err := NewSpace(specs); err == nil {
		t.Error("Expected overflow error for 256^8 combinations")
	}

	// 256^7 does.
	space, err := NewSpace(specs[:7])
	if err != nil {
		t.Fatalf("NewSpace returned error for 256^7: %v", err)
	}
	if space.Count() != 1<<56 {
		t.Errorf("Expected 2^56 combinations, got %d", space.Count())
	}
}

func TestCombinationValue(t *testing.T) {
	combo := Combination{{Param: 12, Value: 64}, {Param: 40, Value: 255}}

	if v, ok := combo.Value(40); !ok || v != 255 {
		t.Errorf("Value(40) = %d, %v; want 255, true", v, ok)
	}
	if _, ok := combo.Value(99); ok {
		t.Error("Expected Value(99) to report missing param")
	}
	if combo.String() != "p12=64 p40=255" {
		t.Errorf("Unexpected String(): %q", combo.String())
	}
}

func TestSpaceParams(t *testing.T) {
	space := twoParamSpace(t)
	got := space.Params()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("Params() = %v, want [0 1]", got)
	}
}
