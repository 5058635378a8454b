// Package capture records fixed-length audio clips from the host's capture
// devices and handles the WAV files the sweep leaves behind.
package capture

import (
	"time"

	"github.com/go-audio/audio"
)

// Recorder captures a clip of the given length from an audio input. Record
// blocks until the clip is complete or the device fails.
type Recorder interface {
	Record(d time.Duration) (*audio.IntBuffer, error)
	Close() error
}
