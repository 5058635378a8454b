// Package classify decides whether a recorded clip counts as silent. The
// decision gates which sweep results are worth keeping on disk.
package classify

import (
	"math"

	"github.com/go-audio/audio"
)

// RMS returns the root mean square level of the buffer, normalized so a
// full-scale square wave measures 1.0. An empty buffer measures 0.
func RMS(buf *audio.IntBuffer) float64 {
	if buf == nil || len(buf.Data) == 0 {
		return 0
	}
	scale := fullScale(buf.SourceBitDepth)
	var sum float64
	for _, s := range buf.Data {
		v := float64(s) / scale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf.Data)))
}

// Peak returns the largest absolute sample level, normalized to [0, 1].
func Peak(buf *audio.IntBuffer) float64 {
	if buf == nil || len(buf.Data) == 0 {
		return 0
	}
	scale := fullScale(buf.SourceBitDepth)
	var peak float64
	for _, s := range buf.Data {
		v := math.Abs(float64(s)) / scale
		if v > peak {
			peak = v
		}
	}
	return peak
}

// IsSilent reports whether the clip's RMS level falls below threshold. An
// empty clip is silent at any positive threshold.
func IsSilent(buf *audio.IntBuffer, threshold float64) bool {
	return RMS(buf) < threshold
}

func fullScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float64(uint64(1) << (bitDepth - 1))
}
