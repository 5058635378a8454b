package capture

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/audio"

	"github.com/harmonia-data/patchsweep/internal/monitoring"
)

var (
	ErrStalled       = fmt.Errorf("capture stalled: device stopped delivering samples")
	ErrDeviceStopped = fmt.Errorf("capture device stopped unexpectedly")
)

// bytesPerSample is fixed by the S16 capture format.
const bytesPerSample = 2

// watchdogInterval is how often Record checks for callback progress.
const watchdogInterval = 50 * time.Millisecond

// DeviceOptions selects and configures a capture device. An empty Name uses
// the system default; otherwise the first device whose name contains Name
// (case-insensitive) is used.
type DeviceOptions struct {
	Name         string
	SampleRate   int
	Channels     int
	StallTimeout time.Duration
}

func (o *DeviceOptions) normalize() {
	if o.SampleRate <= 0 {
		o.SampleRate = 48000
	}
	if o.Channels <= 0 {
		o.Channels = 2
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = 2 * time.Second
	}
}

// StreamRecorder records clips through the host audio backend. It holds the
// backend context for its lifetime; each Record call opens and tears down
// its own device stream so a wedged stream cannot poison the next
// combination.
type StreamRecorder struct {
	ctx      *malgo.AllocatedContext
	opts     DeviceOptions
	deviceID *malgo.DeviceID
}

// NewStreamRecorder initializes the audio backend and resolves the requested
// capture device.
func NewStreamRecorder(opts DeviceOptions) (*StreamRecorder, error) {
	opts.normalize()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		monitoring.Debugf("capture: %s", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("init audio backend: %w", err)
	}

	r := &StreamRecorder{ctx: ctx, opts: opts}
	if opts.Name != "" {
		id, name, err := findCaptureDevice(ctx, opts.Name)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.deviceID = id
		monitoring.Logf("capture: using device %q", name)
	}
	return r, nil
}

func findCaptureDevice(ctx *malgo.AllocatedContext, fragment string) (*malgo.DeviceID, string, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, "", fmt.Errorf("enumerate capture devices: %w", err)
	}
	want := strings.ToLower(fragment)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			id := info.ID
			return &id, info.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("no capture device matching %q (%d devices)", fragment, len(infos))
}

// Record captures d worth of interleaved 16-bit samples. A watchdog aborts
// the capture if the device stops delivering samples for longer than the
// stall timeout, so an unplugged interface fails the combination instead of
// hanging the sweep.
func (r *StreamRecorder) Record(d time.Duration) (*audio.IntBuffer, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(r.opts.Channels)
	cfg.SampleRate = uint32(r.opts.SampleRate)
	cfg.Alsa.NoMMap = 1
	if r.deviceID != nil {
		cfg.Capture.DeviceID = r.deviceID.Pointer()
	}

	target := int(d.Seconds()*float64(r.opts.SampleRate)) * r.opts.Channels * bytesPerSample

	var (
		mu  sync.Mutex
		raw []byte
	)
	stopped := make(chan struct{})
	var stopOnce sync.Once

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			mu.Lock()
			raw = append(raw, in...)
			mu.Unlock()
		},
		Stop: func() {
			stopOnce.Do(func() { close(stopped) })
		},
	}

	device, err := malgo.InitDevice(r.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	lastLen := 0
	lastProgress := time.Now()
	for {
		select {
		case <-stopped:
			return nil, ErrDeviceStopped
		case <-ticker.C:
		}

		mu.Lock()
		n := len(raw)
		mu.Unlock()

		if n >= target {
			break
		}
		if n > lastLen {
			lastLen = n
			lastProgress = time.Now()
		} else if time.Since(lastProgress) > r.opts.StallTimeout {
			return nil, ErrStalled
		}
	}

	mu.Lock()
	clip := make([]byte, target)
	copy(clip, raw[:target])
	mu.Unlock()

	monitoring.Debugf("capture: collected %d bytes for %s clip", target, d)
	return NewBuffer(samplesFromS16LE(clip), r.opts.SampleRate, r.opts.Channels), nil
}

// Close tears down the audio backend.
func (r *StreamRecorder) Close() error {
	err := r.ctx.Uninit()
	r.ctx.Free()
	return err
}

// DeviceInfo names one capture device visible to the host.
type DeviceInfo struct {
	Name    string
	Default bool
}

// ListDevices enumerates the host's capture devices.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio backend: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, DeviceInfo{Name: info.Name(), Default: info.IsDefault != 0})
	}
	return out, nil
}
