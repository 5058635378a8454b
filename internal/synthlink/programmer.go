package synthlink

import (
	"fmt"
	"time"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
	"github.com/harmonia-data/patchsweep/internal/params"
)

var ErrWriteFailed = fmt.Errorf("short write to serial port")

// ProgrammerConfig tunes frame pacing and retry behaviour.
type ProgrammerConfig struct {
	// FrameDelay is the pause after each accepted frame. The firmware
	// latches writes asynchronously and drops frames that arrive while the
	// previous one is still in flight.
	FrameDelay time.Duration

	// Retries is the attempt budget per frame.
	Retries int

	// Backoff is the pause between attempts.
	Backoff time.Duration
}

// Programmer drives the device's set-parameter protocol over a serial port.
type Programmer struct {
	port SerialPorter
	cfg  ProgrammerConfig
}

// NewProgrammer wraps an open port. A non-positive retry budget is treated
// as a single attempt.
func NewProgrammer(port SerialPorter, cfg ProgrammerConfig) *Programmer {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &Programmer{port: port, cfg: cfg}
}

// Apply programs every setting of the combination, in order. The first
// setting to exhaust its attempts aborts the rest of the combination.
func (p *Programmer) Apply(combo params.Combination) error {
	for _, s := range combo {
		if err := p.SetParam(s.Param, s.Value); err != nil {
			return fmt.Errorf("set param %d=%d: %w", s.Param, s.Value, err)
		}
	}
	return nil
}

// SetParam writes one parameter frame, retrying transient failures, then
// pauses for the frame delay.
func (p *Programmer) SetParam(param, value int) error {
	frame, err := EncodeSetFrame(param, value)
	if err != nil {
		return err
	}
	if err := p.writeWithRetry(frame); err != nil {
		return err
	}
	if p.cfg.FrameDelay > 0 {
		time.Sleep(p.cfg.FrameDelay)
	}
	return nil
}

// Reset returns the synthesizer to its power-on patch and waits for the
// firmware to settle.
func (p *Programmer) Reset(settle time.Duration) error {
	if err := p.writeWithRetry(resetFrame); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}
	time.Sleep(settle)
	return nil
}

func (p *Programmer) writeWithRetry(frame []byte) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = p.writeFrame(frame)
		if lastErr == nil {
			return nil
		}
		if attempt >= p.cfg.Retries {
			return lastErr
		}
		monitoring.Logf("synthlink: write failed (attempt %d/%d): %v", attempt, p.cfg.Retries, lastErr)
		time.Sleep(p.cfg.Backoff)
	}
}

// writeFrame clears stale device chatter, writes the frame, and flushes it
// onto the wire.
func (p *Programmer) writeFrame(frame []byte) error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	monitoring.Debugf("synthlink: frame % X", frame)
	n, err := p.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return ErrWriteFailed
	}
	return p.port.Drain()
}

// Close releases the underlying serial port.
func (p *Programmer) Close() error {
	return p.port.Close()
}
