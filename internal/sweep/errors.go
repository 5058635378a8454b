package sweep

import (
	"errors"
	"fmt"
)

// ErrDeviceGone means too many combinations in a row failed at the transport
// layer and the synthesizer is presumed disconnected. Continuing would record
// an unbounded run of error rows, so the sweep aborts instead.
var ErrDeviceGone = errors.New("device unreachable after consecutive transport failures")

// TransportError marks a combination that failed in serial or MIDI I/O after
// the channel's own retries were exhausted. It fails only that combination,
// but consecutive transport failures escalate to ErrDeviceGone.
type TransportError struct {
	Stage string // "serial" or "midi"
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CaptureError marks a combination whose audio capture or file write failed.
// Capture failures never escalate: the device itself answered, so the sweep
// keeps going.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("audio capture: %v", e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
