package midiout

import (
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
)

// Sender is the seam between note timing and the MIDI backend.
type Sender interface {
	Send(msg midi.Message) error
}

// StrikeConfig shapes the note played for every combination.
type StrikeConfig struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
	Hold     time.Duration
	Retries  int
	Backoff  time.Duration
}

// Striker plays the test note: note-on, hold, note-off. Each message gets
// its own retry budget.
type Striker struct {
	sender Sender
	cfg    StrikeConfig
}

// NewStriker wraps a sender. A non-positive retry budget is treated as a
// single attempt.
func NewStriker(sender Sender, cfg StrikeConfig) *Striker {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &Striker{sender: sender, cfg: cfg}
}

// Strike plays one full note. A note-off failure is still an error even
// though the note already sounded: the synth may be left ringing, and the
// device reset between combinations is what clears it.
func (s *Striker) Strike() error {
	if err := s.sendWithRetry(midi.NoteOn(s.cfg.Channel, s.cfg.Note, s.cfg.Velocity)); err != nil {
		return fmt.Errorf("note on: %w", err)
	}
	time.Sleep(s.cfg.Hold)
	if err := s.sendWithRetry(midi.NoteOff(s.cfg.Channel, s.cfg.Note)); err != nil {
		return fmt.Errorf("note off: %w", err)
	}
	return nil
}

func (s *Striker) sendWithRetry(msg midi.Message) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = s.sender.Send(msg)
		if lastErr == nil {
			return nil
		}
		if attempt >= s.cfg.Retries {
			return lastErr
		}
		monitoring.Logf("midiout: send failed (attempt %d/%d): %v", attempt, s.cfg.Retries, lastErr)
		time.Sleep(s.cfg.Backoff)
	}
}
