package synthlink

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/harmonia-data/patchsweep/internal/params"
)

func TestProgrammerApply(t *testing.T) {
	port := &MockPort{}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 1})

	combo := params.Combination{
		{Param: 12, Value: 64},
		{Param: 300, Value: 5},
	}
	if err := prog.Apply(combo); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if len(port.Writes) != 2 {
		t.Fatalf("Expected 2 frames written, got %d", len(port.Writes))
	}
	if !bytes.Equal(port.Writes[0], []byte{'s', 12, 64}) {
		t.Errorf("Unexpected first frame: % X", port.Writes[0])
	}
	if !bytes.Equal(port.Writes[1], []byte{'s', 0xFF, 45, 5}) {
		t.Errorf("Unexpected second frame: % X", port.Writes[1])
	}

	// Stale input is cleared and the frame flushed for every write.
	if port.ResetCount != 2 {
		t.Errorf("Expected 2 input buffer resets, got %d", port.ResetCount)
	}
	if port.DrainCount != 2 {
		t.Errorf("Expected 2 drains, got %d", port.DrainCount)
	}
}

func TestProgrammerRetriesTransientFailure(t *testing.T) {
	port := &MockPort{
		WriteErrors: []error{fmt.Errorf("device busy")},
	}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 3})

	if err := prog.SetParam(7, 99); err != nil {
		t.Fatalf("Expected retry to recover, got error: %v", err)
	}
	if len(port.Writes) != 1 {
		t.Errorf("Expected 1 successful frame, got %d", len(port.Writes))
	}
}

func TestProgrammerRetriesExhausted(t *testing.T) {
	boom := fmt.Errorf("device gone")
	port := &MockPort{
		WriteErrors: []error{boom, boom, boom},
	}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 3})

	err := prog.Apply(params.Combination{{Param: 1, Value: 2}})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped write error, got %v", err)
	}
	if len(port.Writes) != 0 {
		t.Errorf("Expected no recorded frames, got %d", len(port.Writes))
	}
}

func TestProgrammerShortWrite(t *testing.T) {
	port := &MockPort{ShortWrite: true}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 1})

	err := prog.SetParam(1, 2)
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Expected ErrWriteFailed, got %v", err)
	}
}

func TestProgrammerRejectsBadSetting(t *testing.T) {
	port := &MockPort{}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 1})

	if err := prog.SetParam(511, 0); err == nil {
		t.Error("Expected error for out-of-range parameter")
	}
	if port.ResetCount != 0 || len(port.Writes) != 0 {
		t.Error("Expected no port traffic for an unencodable frame")
	}
}

func TestProgrammerReset(t *testing.T) {
	port := &MockPort{}
	prog := NewProgrammer(port, ProgrammerConfig{Retries: 1})

	if err := prog.Reset(0); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if len(port.Writes) != 1 || !bytes.Equal(port.Writes[0], []byte("r 0")) {
		t.Errorf("Expected reset frame 'r 0', got %q", port.Writes)
	}
}

func TestProgrammerDefaultsToSingleAttempt(t *testing.T) {
	port := &MockPort{
		WriteErrors: []error{fmt.Errorf("nope")},
	}
	prog := NewProgrammer(port, ProgrammerConfig{})

	if err := prog.SetParam(1, 1); err == nil {
		t.Error("Expected single-attempt failure with zero retry budget")
	}
}

func TestProgrammerClose(t *testing.T) {
	port := &MockPort{}
	prog := NewProgrammer(port, ProgrammerConfig{})

	if err := prog.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !port.Closed {
		t.Error("Expected underlying port to be closed")
	}
}
