package classify

import (
	"math"
	"testing"

	"github.com/go-audio/audio"
)

func bufferOf(samples ...int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: 48000, NumChannels: 1},
		SourceBitDepth: 16,
	}
}

func TestRMS(t *testing.T) {
	// Half-scale square wave has an exact RMS of 0.5.
	buf := bufferOf(16384, -16384, 16384, -16384)
	if got := RMS(buf); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected RMS 0.5, got %f", got)
	}

	if got := RMS(bufferOf(0, 0, 0, 0)); got != 0 {
		t.Errorf("Expected RMS 0 for digital silence, got %f", got)
	}
}

func TestRMSEmptyBuffer(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("Expected RMS 0 for nil buffer, got %f", got)
	}
	if got := RMS(bufferOf()); got != 0 {
		t.Errorf("Expected RMS 0 for empty buffer, got %f", got)
	}
}

func TestRMSBitDepth(t *testing.T) {
	buf := &audio.IntBuffer{
		Data:           []int{64, -64},
		Format:         &audio.Format{SampleRate: 48000, NumChannels: 1},
		SourceBitDepth: 8,
	}
	if got := RMS(buf); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected RMS 0.5 for half-scale 8-bit, got %f", got)
	}

	// Unknown bit depth falls back to 16-bit scaling.
	buf.SourceBitDepth = 0
	if got := RMS(&audio.IntBuffer{Data: []int{16384}, SourceBitDepth: 0}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 16-bit fallback scaling, got %f", got)
	}
}

func TestPeak(t *testing.T) {
	buf := bufferOf(100, -8192, 300)
	if got := Peak(buf); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Expected peak 0.25, got %f", got)
	}
	if got := Peak(nil); got != 0 {
		t.Errorf("Expected peak 0 for nil buffer, got %f", got)
	}
}

func TestIsSilent(t *testing.T) {
	quiet := bufferOf(10, -10, 10, -10)    // RMS ~0.0003
	loud := bufferOf(16384, -16384, 16384) // RMS 0.5

	if !IsSilent(quiet, 0.01) {
		t.Error("Expected near-zero signal to be silent at default threshold")
	}
	if IsSilent(loud, 0.01) {
		t.Error("Expected half-scale signal to be audible at default threshold")
	}
	if !IsSilent(bufferOf(), 0.01) {
		t.Error("Expected empty clip to be silent")
	}
}

func TestIsSilentMonotonicInThreshold(t *testing.T) {
	buf := bufferOf(8192, -8192, 8192, -8192) // RMS 0.25

	silentAt := func(th float64) bool { return IsSilent(buf, th) }
	thresholds := []float64{0.01, 0.1, 0.24, 0.26, 0.5, 1.0}

	wasSilent := false
	for _, th := range thresholds {
		s := silentAt(th)
		if wasSilent && !s {
			t.Errorf("Silence not monotonic: silent below %f but audible at it", th)
		}
		if s {
			wasSilent = true
		}
	}
	if !wasSilent {
		t.Error("Expected buffer to be silent at threshold 1.0")
	}
}
