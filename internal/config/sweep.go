// Package config holds the sweep rig configuration. A JSON file supplies
// overrides; fields omitted from the file fall back to defaults through the
// Get* accessors, so partial configs are safe. Command-line flags are applied
// on top by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SweepConfig is the root configuration for a parameter sweep run. All fields
// are pointers so an absent key can be told apart from an explicit zero.
type SweepConfig struct {
	// Device channel (serial)
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	FrameDelay *string `json:"frame_delay,omitempty"` // duration string like "10ms"

	// Trigger channel (MIDI)
	MIDIPort    *string `json:"midi_port,omitempty"` // name fragment, empty = first available
	MIDIChannel *int    `json:"midi_channel,omitempty"`
	Note        *int    `json:"note,omitempty"`
	Velocity    *int    `json:"velocity,omitempty"`
	NoteHold    *string `json:"note_hold,omitempty"` // duration string like "10s"

	// Capture channel (audio)
	AudioDevice  *string `json:"audio_device,omitempty"` // name fragment, empty = default device
	SampleRate   *int    `json:"sample_rate,omitempty"`
	Channels     *int    `json:"channels,omitempty"`
	PreRoll      *string `json:"pre_roll,omitempty"`
	Tail         *string `json:"tail,omitempty"`
	TestWindow   *string `json:"test_window,omitempty"`
	StallTimeout *string `json:"stall_timeout,omitempty"`

	// Classification
	SilenceThreshold *float64 `json:"silence_threshold,omitempty"`

	// Sweep policy
	DurationHours          *float64 `json:"duration_hours,omitempty"`
	SampleDelay            *string  `json:"sample_delay,omitempty"`
	ResetSettle            *string  `json:"reset_settle,omitempty"`
	FrameRetries           *int     `json:"frame_retries,omitempty"`
	RetryBackoff           *string  `json:"retry_backoff,omitempty"`
	MaxConsecutiveFailures *int     `json:"max_consecutive_failures,omitempty"`

	// Paths and surfaces
	ParamSpecs    *string `json:"param_specs,omitempty"`
	ResultsCSV    *string `json:"results_csv,omitempty"`
	AudioDir      *string `json:"audio_dir,omitempty"`
	RunDB         *string `json:"run_db,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`
	ListenAddr    *string `json:"listen_addr,omitempty"` // empty = status API disabled
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySweepConfig returns a SweepConfig with all fields set to nil. The Get*
// accessors supply defaults for anything left nil.
func EmptySweepConfig() *SweepConfig {
	return &SweepConfig{}
}

// LoadSweepConfig loads a SweepConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadSweepConfig(path string) (*SweepConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySweepConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SweepConfig) Validate() error {
	if c.SilenceThreshold != nil {
		if *c.SilenceThreshold < 0 || *c.SilenceThreshold > 1 {
			return fmt.Errorf("silence_threshold must be between 0 and 1, got %f", *c.SilenceThreshold)
		}
	}

	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", *c.SampleRate)
	}

	if c.Channels != nil && (*c.Channels < 1 || *c.Channels > 8) {
		return fmt.Errorf("channels must be between 1 and 8, got %d", *c.Channels)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	if c.Note != nil && (*c.Note < 0 || *c.Note > 127) {
		return fmt.Errorf("note must be a MIDI key 0-127, got %d", *c.Note)
	}

	if c.Velocity != nil && (*c.Velocity < 1 || *c.Velocity > 127) {
		return fmt.Errorf("velocity must be 1-127, got %d", *c.Velocity)
	}

	if c.MIDIChannel != nil && (*c.MIDIChannel < 0 || *c.MIDIChannel > 15) {
		return fmt.Errorf("midi_channel must be 0-15, got %d", *c.MIDIChannel)
	}

	if c.DurationHours != nil && *c.DurationHours <= 0 {
		return fmt.Errorf("duration_hours must be positive, got %f", *c.DurationHours)
	}

	if c.FrameRetries != nil && *c.FrameRetries < 1 {
		return fmt.Errorf("frame_retries must be at least 1, got %d", *c.FrameRetries)
	}

	if c.MaxConsecutiveFailures != nil && *c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max_consecutive_failures must be at least 1, got %d", *c.MaxConsecutiveFailures)
	}

	// Validate every duration string can be parsed if set
	durations := map[string]*string{
		"frame_delay":   c.FrameDelay,
		"note_hold":     c.NoteHold,
		"pre_roll":      c.PreRoll,
		"tail":          c.Tail,
		"test_window":   c.TestWindow,
		"stall_timeout": c.StallTimeout,
		"sample_delay":  c.SampleDelay,
		"reset_settle":  c.ResetSettle,
		"retry_backoff": c.RetryBackoff,
	}
	for name, val := range durations {
		if val != nil && *val != "" {
			if _, err := time.ParseDuration(*val); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *val, err)
			}
		}
	}

	return nil
}

// parseDurationOr parses a duration pointer, falling back to def when the
// field is unset, empty, or unparseable.
func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetSerialPort returns the serial port path or the default.
func (c *SweepConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyACM0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the serial baud rate or the default.
func (c *SweepConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 500000
	}
	return *c.BaudRate
}

// GetFrameDelay returns the pause between parameter frames.
func (c *SweepConfig) GetFrameDelay() time.Duration {
	return parseDurationOr(c.FrameDelay, 10*time.Millisecond)
}

// GetMIDIPort returns the MIDI output port name fragment ("" = first available).
func (c *SweepConfig) GetMIDIPort() string {
	if c.MIDIPort == nil {
		return ""
	}
	return *c.MIDIPort
}

// GetMIDIChannel returns the MIDI channel (0-based) or the default.
func (c *SweepConfig) GetMIDIChannel() int {
	if c.MIDIChannel == nil {
		return 0
	}
	return *c.MIDIChannel
}

// GetNote returns the trigger note or the default (middle C).
func (c *SweepConfig) GetNote() int {
	if c.Note == nil {
		return 60
	}
	return *c.Note
}

// GetVelocity returns the trigger velocity or the default.
func (c *SweepConfig) GetVelocity() int {
	if c.Velocity == nil {
		return 127
	}
	return *c.Velocity
}

// GetNoteHold returns how long the trigger note is held.
func (c *SweepConfig) GetNoteHold() time.Duration {
	return parseDurationOr(c.NoteHold, 10*time.Second)
}

// GetAudioDevice returns the capture device name fragment ("" = default device).
func (c *SweepConfig) GetAudioDevice() string {
	if c.AudioDevice == nil {
		return ""
	}
	return *c.AudioDevice
}

// GetSampleRate returns the capture sample rate or the default.
func (c *SweepConfig) GetSampleRate() int {
	if c.SampleRate == nil {
		return 48000
	}
	return *c.SampleRate
}

// GetChannels returns the capture channel count or the default.
func (c *SweepConfig) GetChannels() int {
	if c.Channels == nil {
		return 2
	}
	return *c.Channels
}

// GetPreRoll returns the capture lead time before note-on.
func (c *SweepConfig) GetPreRoll() time.Duration {
	return parseDurationOr(c.PreRoll, 100*time.Millisecond)
}

// GetTail returns the capture time kept after note-off.
func (c *SweepConfig) GetTail() time.Duration {
	return parseDurationOr(c.Tail, time.Second)
}

// GetTestWindow returns the length of the trimmed window used for the
// silence decision.
func (c *SweepConfig) GetTestWindow() time.Duration {
	return parseDurationOr(c.TestWindow, 3*time.Second)
}

// GetStallTimeout returns how long the capture stream may go quiet before the
// recording fails.
func (c *SweepConfig) GetStallTimeout() time.Duration {
	return parseDurationOr(c.StallTimeout, 2*time.Second)
}

// GetSilenceThreshold returns the normalized RMS threshold or the default.
func (c *SweepConfig) GetSilenceThreshold() float64 {
	if c.SilenceThreshold == nil {
		return 0.01
	}
	return *c.SilenceThreshold
}

// GetDuration returns the wall-clock sweep budget.
func (c *SweepConfig) GetDuration() time.Duration {
	hours := 24.0
	if c.DurationHours != nil {
		hours = *c.DurationHours
	}
	return time.Duration(hours * float64(time.Hour))
}

// GetSampleDelay returns the pause between combinations.
func (c *SweepConfig) GetSampleDelay() time.Duration {
	return parseDurationOr(c.SampleDelay, 500*time.Millisecond)
}

// GetResetSettle returns the settle time after a device reset.
func (c *SweepConfig) GetResetSettle() time.Duration {
	return parseDurationOr(c.ResetSettle, time.Second)
}

// GetFrameRetries returns the per-frame write attempt budget.
func (c *SweepConfig) GetFrameRetries() int {
	if c.FrameRetries == nil {
		return 3
	}
	return *c.FrameRetries
}

// GetRetryBackoff returns the pause between frame write retries.
func (c *SweepConfig) GetRetryBackoff() time.Duration {
	return parseDurationOr(c.RetryBackoff, 50*time.Millisecond)
}

// GetMaxConsecutiveFailures returns how many transport-failed combinations in
// a row abort the sweep.
func (c *SweepConfig) GetMaxConsecutiveFailures() int {
	if c.MaxConsecutiveFailures == nil {
		return 5
	}
	return *c.MaxConsecutiveFailures
}

// GetParamSpecs returns the parameter specification CSV path.
func (c *SweepConfig) GetParamSpecs() string {
	if c.ParamSpecs == nil {
		return "param_specs.csv"
	}
	return *c.ParamSpecs
}

// GetResultsCSV returns the results CSV path.
func (c *SweepConfig) GetResultsCSV() string {
	if c.ResultsCSV == nil {
		return "sweep_results.csv"
	}
	return *c.ResultsCSV
}

// GetAudioDir returns the directory for indexed WAV output.
func (c *SweepConfig) GetAudioDir() string {
	if c.AudioDir == nil {
		return "."
	}
	return *c.AudioDir
}

// GetRunDB returns the run-history database path ("" disables run history).
func (c *SweepConfig) GetRunDB() string {
	if c.RunDB == nil {
		return "patchsweep.db"
	}
	return *c.RunDB
}

// GetMigrationsDir returns the directory holding schema migrations.
func (c *SweepConfig) GetMigrationsDir() string {
	if c.MigrationsDir == nil {
		return "migrations"
	}
	return *c.MigrationsDir
}

// GetListenAddr returns the status API listen address ("" = disabled).
func (c *SweepConfig) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ""
	}
	return *c.ListenAddr
}
