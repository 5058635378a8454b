package sweep

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportErrorWrapsCause(t *testing.T) {
	cause := errors.New("write EIO")
	err := fmt.Errorf("program combination: %w", &TransportError{Stage: "serial", Err: cause})

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "serial", terr.Stage)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, terr, "serial transport: write EIO")
}

func TestCaptureErrorWrapsCause(t *testing.T) {
	cause := errors.New("stream stalled")
	err := fmt.Errorf("record combination: %w", &CaptureError{Err: cause})

	var cerr *CaptureError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, cerr, "audio capture: stream stalled")
}

func TestCaptureErrorIsNotTransport(t *testing.T) {
	err := fmt.Errorf("record combination: %w", &CaptureError{Err: errors.New("device lost")})

	var terr *TransportError
	assert.False(t, errors.As(err, &terr), "capture failures must not count toward transport escalation")
}

func TestDeviceGoneSentinel(t *testing.T) {
	err := fmt.Errorf("5 consecutive transport failures: %w", ErrDeviceGone)
	assert.ErrorIs(t, err, ErrDeviceGone)
}
