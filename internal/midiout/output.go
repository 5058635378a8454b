// Package midiout triggers the test note on the synthesizer through a MIDI
// output port.
package midiout

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
)

// Output owns the MIDI driver and one open output port.
type Output struct {
	drv *rtmididrv.Driver
	out drivers.Out
}

// OpenOutput initialises the driver and opens an output port. An empty
// fragment picks the first port; otherwise the first port whose name
// contains fragment (case-insensitive) is opened.
func OpenOutput(fragment string) (*Output, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("init midi driver: %w", err)
	}

	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("enumerate midi outputs: %w", err)
	}
	if len(outs) == 0 {
		drv.Close()
		return nil, fmt.Errorf("no midi output ports available")
	}

	out, err := pickOutput(outs, fragment)
	if err != nil {
		drv.Close()
		return nil, err
	}
	if err := out.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open midi output %q: %w", out.String(), err)
	}

	monitoring.Logf("midiout: using port %q", out.String())
	return &Output{drv: drv, out: out}, nil
}

func pickOutput(outs []drivers.Out, fragment string) (drivers.Out, error) {
	if fragment == "" {
		return outs[0], nil
	}
	for _, out := range outs {
		if containsCI(out.String(), fragment) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("no midi output matching %q (%d ports)", fragment, len(outs))
}

// Name returns the opened port's name.
func (o *Output) Name() string {
	return o.out.String()
}

// Send writes one message to the port, reopening it if the backend closed it
// underneath us.
func (o *Output) Send(msg midi.Message) error {
	if !o.out.IsOpen() {
		if err := o.out.Open(); err != nil {
			return err
		}
	}
	return o.out.Send(msg.Bytes())
}

// Close closes the port and shuts down the driver.
func (o *Output) Close() error {
	if o.out != nil && o.out.IsOpen() {
		if err := o.out.Close(); err != nil {
			o.drv.Close()
			return err
		}
	}
	return o.drv.Close()
}

// ListPorts returns the names of the MIDI output ports visible to the host.
func ListPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("init midi driver: %w", err)
	}
	defer drv.Close()

	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("enumerate midi outputs: %w", err)
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names, nil
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
