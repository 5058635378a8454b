// Package sweep drives the parameter sweep: for each combination index it
// programs the synthesizer, strikes the trigger note while recording, decides
// silence, and persists one result row before advancing. Combinations are
// strictly sequential because every channel wraps one exclusive piece of
// hardware.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-audio/audio"

	"github.com/harmonia-data/patchsweep/internal/capture"
	"github.com/harmonia-data/patchsweep/internal/classify"
	"github.com/harmonia-data/patchsweep/internal/monitoring"
	"github.com/harmonia-data/patchsweep/internal/params"
	"github.com/harmonia-data/patchsweep/internal/results"
)

// SweepStatus represents the current state of a sweep run.
type SweepStatus string

const (
	SweepStatusIdle     SweepStatus = "idle"
	SweepStatusRunning  SweepStatus = "running"
	SweepStatusComplete SweepStatus = "complete"
	SweepStatusAborted  SweepStatus = "aborted"
)

// Phase is the per-combination pipeline stage, exposed for status reporting.
type Phase string

const (
	PhaseConfiguring Phase = "configuring"
	PhaseTriggering  Phase = "triggering"
	PhaseCapturing   Phase = "capturing"
	PhaseClassifying Phase = "classifying"
	PhasePersisting  Phase = "persisting"
)

// Stop reasons recorded in the run history and final log line.
const (
	StopReasonSpaceExhausted = "space exhausted"
	StopReasonBudget         = "duration budget exhausted"
	StopReasonStopRequested  = "stop requested"
	StopReasonDeviceGone     = "device unreachable"
	StopReasonStoreFailure   = "result store failure"
)

// Programmer pushes a parameter combination to the synthesizer and returns
// it to a known default patch between combinations.
type Programmer interface {
	Apply(combo params.Combination) error
	Reset(settle time.Duration) error
}

// Striker plays the configured trigger note once: note-on, hold, note-off.
type Striker interface {
	Strike() error
}

// Config wires the channels and timing for one Runner. The channel handles
// are owned by the caller; the Runner never closes them.
type Config struct {
	Space      *params.Space
	Programmer Programmer
	Striker    Striker
	Recorder   capture.Recorder
	Store      *results.Store

	// AudioDir receives {index}.wav and {index}_test.wav for audible results.
	AudioDir string

	// StartIndex is the resume point, normally results.ResumeIndex.
	StartIndex uint64

	PreRoll          time.Duration
	Hold             time.Duration
	Tail             time.Duration
	TestWindow       time.Duration
	SilenceThreshold float64

	// SampleDelay separates combinations; ResetSettle is passed to the
	// Programmer's reset between them.
	SampleDelay time.Duration
	ResetSettle time.Duration

	// Budget bounds the run in wall-clock time. Zero means unlimited.
	Budget time.Duration

	// MaxConsecutiveFailures is the transport-failure run length that
	// escalates to ErrDeviceGone. Values below 1 default to 5.
	MaxConsecutiveFailures int
}

// SweepState is a point-in-time snapshot of the runner, shaped for the
// status API.
type SweepState struct {
	Status       SweepStatus `json:"status"`
	Phase        Phase       `json:"phase,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Deadline     *time.Time  `json:"deadline,omitempty"`
	SpaceCount   uint64      `json:"space_count"`
	ResumeIndex  uint64      `json:"resume_index"`
	CurrentIndex uint64      `json:"current_index"`
	Processed    uint64      `json:"processed"`
	Audible      uint64      `json:"audible"`
	Silent       uint64      `json:"silent"`
	Errors       uint64      `json:"errors"`

	// ConsecutiveTransportFailures is the current escalation counter, reset
	// by any combination that reaches the device.
	ConsecutiveTransportFailures int `json:"consecutive_transport_failures"`

	LastRMS    float64  `json:"last_rms"`
	LastError  string   `json:"last_error,omitempty"`
	StopReason string   `json:"stop_reason,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Summary is the final accounting of one Run call.
type Summary struct {
	StartIndex uint64
	NextIndex  uint64
	Processed  uint64
	Audible    uint64
	Silent     uint64
	Errors     uint64
	StopReason string
}

// Runner orchestrates the sweep. One Runner runs one sweep at a time.
type Runner struct {
	cfg Config

	mu    sync.RWMutex
	state SweepState
}

// NewRunner validates the wiring and returns a Runner in the idle state.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Space == nil {
		return nil, fmt.Errorf("sweep: no parameter space")
	}
	if cfg.Programmer == nil {
		return nil, fmt.Errorf("sweep: no device programmer")
	}
	if cfg.Striker == nil {
		return nil, fmt.Errorf("sweep: no trigger striker")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("sweep: no audio recorder")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("sweep: no result store")
	}
	if cfg.StartIndex > cfg.Space.Count() {
		return nil, fmt.Errorf("sweep: start index %d beyond space of %d combinations", cfg.StartIndex, cfg.Space.Count())
	}
	if cfg.MaxConsecutiveFailures < 1 {
		cfg.MaxConsecutiveFailures = 5
	}
	return &Runner{
		cfg:   cfg,
		state: SweepState{Status: SweepStatusIdle},
	}, nil
}

// GetSweepState returns a copy of the current sweep state.
func (r *Runner) GetSweepState() SweepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state := r.state
	warnings := make([]string, len(r.state.Warnings))
	copy(warnings, r.state.Warnings)
	state.Warnings = warnings
	return state
}

func (r *Runner) addWarning(msg string) {
	r.mu.Lock()
	r.state.Warnings = append(r.state.Warnings, msg)
	r.mu.Unlock()
}

func (r *Runner) setPhase(p Phase, index uint64) {
	r.mu.Lock()
	r.state.Phase = p
	r.state.CurrentIndex = index
	r.mu.Unlock()
}

// Run executes the sweep from StartIndex to the end of the space, the
// duration budget, or a stop request, whichever comes first. The context is
// consulted only at combination boundaries: an in-flight combination always
// finishes classify-and-persist, so the store stays resumable. Run blocks
// until the sweep ends and returns a non-nil error only for fatal aborts.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	if r.state.Status == SweepStatusRunning {
		r.mu.Unlock()
		return Summary{}, fmt.Errorf("sweep already in progress")
	}
	started := time.Now()
	r.state = SweepState{
		Status:       SweepStatusRunning,
		StartedAt:    &started,
		SpaceCount:   r.cfg.Space.Count(),
		ResumeIndex:  r.cfg.StartIndex,
		CurrentIndex: r.cfg.StartIndex,
	}
	var deadline time.Time
	if r.cfg.Budget > 0 {
		deadline = started.Add(r.cfg.Budget)
		r.state.Deadline = &deadline
	}
	r.mu.Unlock()

	total := r.cfg.Space.Count()
	sum := Summary{StartIndex: r.cfg.StartIndex, NextIndex: r.cfg.StartIndex}
	consecutive := 0
	stopReason := StopReasonSpaceExhausted
	var fatal error

	monitoring.Logf("[sweep] starting at combination %d of %d", r.cfg.StartIndex, total)

loop:
	for index := r.cfg.StartIndex; index < total; index++ {
		select {
		case <-ctx.Done():
			stopReason = StopReasonStopRequested
			break loop
		default:
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			stopReason = StopReasonBudget
			break loop
		}

		combo, err := r.cfg.Space.CombinationAt(index)
		if err != nil {
			fatal = fmt.Errorf("enumerate combination %d: %w", index, err)
			stopReason = "internal error"
			break loop
		}

		monitoring.Logf("[sweep] combination %d/%d: %s", index, total, combo)

		rec, procErr := r.processOne(index, combo)
		if procErr != nil {
			rec.Status = results.StatusError
			rec.RMS = 0
			monitoring.Logf("[sweep] combination %d failed: %v", index, procErr)
		}

		rec.Timestamp = time.Now()
		if err := r.cfg.Store.Append(rec); err != nil {
			fatal = fmt.Errorf("append result row %d: %w", index, err)
			stopReason = StopReasonStoreFailure
			break loop
		}
		sum.NextIndex = index + 1
		sum.Processed++
		switch rec.Status {
		case results.StatusAudible:
			sum.Audible++
		case results.StatusSilentSkipped:
			sum.Silent++
		default:
			sum.Errors++
		}

		var terr *TransportError
		if errors.As(procErr, &terr) {
			consecutive++
		} else {
			consecutive = 0
		}

		r.mu.Lock()
		r.state.Processed = sum.Processed
		r.state.Audible = sum.Audible
		r.state.Silent = sum.Silent
		r.state.Errors = sum.Errors
		r.state.LastRMS = rec.RMS
		if procErr != nil {
			r.state.LastError = procErr.Error()
		}
		r.state.ConsecutiveTransportFailures = consecutive
		r.mu.Unlock()

		if consecutive >= r.cfg.MaxConsecutiveFailures {
			fatal = fmt.Errorf("%d consecutive transport failures: %w", consecutive, ErrDeviceGone)
			stopReason = StopReasonDeviceGone
			break loop
		}

		// Back to the default patch so the next combination starts clean.
		// A failed reset is only a warning; if the device is really gone the
		// next Apply will fail and feed the escalation counter.
		if err := r.cfg.Programmer.Reset(r.cfg.ResetSettle); err != nil {
			monitoring.Logf("[sweep] WARNING: device reset after combination %d failed: %v", index, err)
			r.addWarning(fmt.Sprintf("combination %d: device reset failed: %v", index, err))
		}
		if r.cfg.SampleDelay > 0 {
			time.Sleep(r.cfg.SampleDelay)
		}
	}

	completed := time.Now()
	r.mu.Lock()
	r.state.Phase = ""
	r.state.CompletedAt = &completed
	r.state.StopReason = stopReason
	if fatal != nil {
		r.state.Status = SweepStatusAborted
		r.state.LastError = fatal.Error()
	} else {
		r.state.Status = SweepStatusComplete
	}
	r.mu.Unlock()

	sum.StopReason = stopReason
	if fatal != nil {
		monitoring.Logf("[sweep] aborted after %d combinations: %v", sum.Processed, fatal)
		return sum, fatal
	}
	monitoring.Logf("[sweep] done (%s): %d combinations, %d audible, %d silent, %d errors",
		stopReason, sum.Processed, sum.Audible, sum.Silent, sum.Errors)
	return sum, nil
}

type captureResult struct {
	buf *audio.IntBuffer
	err error
}

// processOne drives a single combination through the pipeline and returns
// the record to persist. A non-nil error means the record must be persisted
// with status=error; the record's Status and RMS are then overwritten by the
// caller.
func (r *Runner) processOne(index uint64, combo params.Combination) (results.Record, error) {
	rec := results.Record{Index: index, Combo: combo, Status: results.StatusError}

	r.setPhase(PhaseConfiguring, index)
	if err := r.cfg.Programmer.Apply(combo); err != nil {
		return rec, &TransportError{Stage: "serial", Err: err}
	}

	// The capture spans pre-roll, the held note, and the release tail. It
	// runs on its own goroutine so the recorder fills while Strike blocks in
	// its hold wait; the recorder's own stall timeout bounds the join.
	window := r.cfg.PreRoll + r.cfg.Hold + r.cfg.Tail
	capCh := make(chan captureResult, 1)
	go func() {
		buf, err := r.cfg.Recorder.Record(window)
		capCh <- captureResult{buf: buf, err: err}
	}()

	r.setPhase(PhaseTriggering, index)
	time.Sleep(r.cfg.PreRoll)
	strikeErr := r.cfg.Striker.Strike()

	r.setPhase(PhaseCapturing, index)
	captured := <-capCh

	if strikeErr != nil {
		return rec, &TransportError{Stage: "midi", Err: strikeErr}
	}
	if captured.err != nil {
		return rec, &CaptureError{Err: captured.err}
	}

	r.setPhase(PhaseClassifying, index)
	test := capture.TrimWindow(captured.buf, r.cfg.PreRoll, r.cfg.TestWindow)
	rec.RMS = classify.RMS(test)

	r.setPhase(PhasePersisting, index)
	if classify.IsSilent(test, r.cfg.SilenceThreshold) {
		rec.Status = results.StatusSilentSkipped
		return rec, nil
	}

	// Audio files land before the CSV row so a crash can never leave a row
	// pointing at files that were not written.
	if err := capture.WriteWAV(results.RawWAVPath(r.cfg.AudioDir, index), captured.buf); err != nil {
		return rec, &CaptureError{Err: err}
	}
	if err := capture.WriteWAV(results.TestWAVPath(r.cfg.AudioDir, index), test); err != nil {
		return rec, &CaptureError{Err: err}
	}
	rec.Status = results.StatusAudible
	return rec, nil
}
