package capture

import (
	"encoding/binary"
	"time"

	"github.com/go-audio/audio"
)

// NewBuffer wraps interleaved samples in a 16-bit IntBuffer.
func NewBuffer(samples []int, sampleRate, channels int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Data: samples,
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		SourceBitDepth: 16,
	}
}

// samplesFromS16LE converts raw little-endian 16-bit frames to the int
// samples go-audio buffers carry.
func samplesFromS16LE(raw []byte) []int {
	n := len(raw) / bytesPerSample
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:])))
	}
	return out
}

// TrimWindow returns a copy of the sub-clip covering [start, start+length),
// clamped to the clip's bounds. Offsets are frame-accurate so channel
// interleaving is preserved.
func TrimWindow(buf *audio.IntBuffer, start, length time.Duration) *audio.IntBuffer {
	rate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	totalFrames := len(buf.Data) / channels

	startFrame := int(start.Seconds() * float64(rate))
	frames := int(length.Seconds() * float64(rate))
	if startFrame < 0 {
		startFrame = 0
	}
	if startFrame > totalFrames {
		startFrame = totalFrames
	}
	if frames < 0 {
		frames = 0
	}
	if startFrame+frames > totalFrames {
		frames = totalFrames - startFrame
	}

	data := make([]int, frames*channels)
	copy(data, buf.Data[startFrame*channels:(startFrame+frames)*channels])

	return &audio.IntBuffer{
		Data: data,
		Format: &audio.Format{
			SampleRate:  rate,
			NumChannels: channels,
		},
		SourceBitDepth: buf.SourceBitDepth,
	}
}
