package capture

import (
	"testing"
	"time"
)

func TestSamplesFromS16LE(t *testing.T) {
	raw := []byte{
		0x00, 0x00, // 0
		0xFF, 0x7F, // 32767
		0x00, 0x80, // -32768
		0x01, 0x00, // 1
	}
	got := samplesFromS16LE(raw)
	want := []int{0, 32767, -32768, 1}

	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestSamplesFromS16LEOddTail(t *testing.T) {
	// A trailing odd byte cannot form a sample and is dropped.
	got := samplesFromS16LE([]byte{0x01, 0x00, 0xFF})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected single sample [1], got %v", got)
	}
}

func TestTrimWindow(t *testing.T) {
	// 1 kHz stereo makes the frame math easy to follow: 1 frame per ms.
	samples := make([]int, 0, 200)
	for f := 0; f < 100; f++ {
		samples = append(samples, f, -f) // left, right
	}
	buf := NewBuffer(samples, 1000, 2)

	trimmed := TrimWindow(buf, 20*time.Millisecond, 30*time.Millisecond)

	if got := len(trimmed.Data); got != 60 {
		t.Fatalf("Expected 60 samples (30 stereo frames), got %d", got)
	}
	if trimmed.Data[0] != 20 || trimmed.Data[1] != -20 {
		t.Errorf("Expected window to start at frame 20, got (%d, %d)", trimmed.Data[0], trimmed.Data[1])
	}
	if trimmed.Data[58] != 49 || trimmed.Data[59] != -49 {
		t.Errorf("Expected window to end at frame 49, got (%d, %d)", trimmed.Data[58], trimmed.Data[59])
	}
	if trimmed.Format.SampleRate != 1000 || trimmed.Format.NumChannels != 2 {
		t.Errorf("Format not carried through: %+v", trimmed.Format)
	}
}

func TestTrimWindowClamps(t *testing.T) {
	buf := NewBuffer([]int{1, 2, 3, 4}, 1000, 1)

	// Window extending past the clip is truncated.
	trimmed := TrimWindow(buf, 2*time.Millisecond, time.Second)
	if len(trimmed.Data) != 2 {
		t.Errorf("Expected 2 samples after clamping, got %d", len(trimmed.Data))
	}

	// Window starting past the clip is empty.
	trimmed = TrimWindow(buf, time.Second, time.Second)
	if len(trimmed.Data) != 0 {
		t.Errorf("Expected empty window, got %d samples", len(trimmed.Data))
	}

	// Negative start clamps to the beginning.
	trimmed = TrimWindow(buf, -time.Second, 2*time.Millisecond)
	if len(trimmed.Data) != 2 || trimmed.Data[0] != 1 {
		t.Errorf("Expected first 2 samples, got %v", trimmed.Data)
	}
}

func TestTrimWindowDoesNotAlias(t *testing.T) {
	buf := NewBuffer([]int{10, 20, 30, 40}, 1000, 1)
	trimmed := TrimWindow(buf, 0, 2*time.Millisecond)
	trimmed.Data[0] = 99
	if buf.Data[0] != 10 {
		t.Error("Trimmed clip shares backing storage with the original")
	}
}
