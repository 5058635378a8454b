// Package synthlink programs synthesizer patch parameters over the device's
// serial set-parameter protocol.
package synthlink

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// SerialPorter defines the minimal interface needed to program the device.
// The protocol is write-only; the input buffer is cleared before each frame
// so stale device chatter never delays a write.
type SerialPorter interface {
	io.Writer
	io.Closer
	ResetInputBuffer() error
	Drain() error
}

// openSettle is how long the CDC ACM port needs after open before the
// firmware accepts frames.
const openSettle = 500 * time.Millisecond

// PortOptions configures the physical serial connection.
type PortOptions struct {
	BaudRate int
}

// Open opens the serial device at path with 8N1 framing and waits for the
// firmware to come up.
func Open(path string, opts PortOptions) (SerialPorter, error) {
	if opts.BaudRate <= 0 {
		opts.BaudRate = 500000
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}

	time.Sleep(openSettle)
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", path, err)
	}
	return port, nil
}

// ListPorts returns the serial device paths visible to the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	return ports, nil
}
