package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/harmonia-data/patchsweep/internal/api"
	"github.com/harmonia-data/patchsweep/internal/capture"
	"github.com/harmonia-data/patchsweep/internal/config"
	"github.com/harmonia-data/patchsweep/internal/db"
	"github.com/harmonia-data/patchsweep/internal/midiout"
	"github.com/harmonia-data/patchsweep/internal/monitoring"
	"github.com/harmonia-data/patchsweep/internal/params"
	"github.com/harmonia-data/patchsweep/internal/report"
	"github.com/harmonia-data/patchsweep/internal/results"
	"github.com/harmonia-data/patchsweep/internal/sweep"
	"github.com/harmonia-data/patchsweep/internal/synthlink"
	"github.com/harmonia-data/patchsweep/internal/version"
)

// Flags override the config file; zero or empty values mean "not set" and
// fall through to the config file, then to built-in defaults.
var (
	configPath = flag.String("config", "", "JSON config file (optional)")

	serialPort = flag.String("serial-port", "", "Serial device for the synth programmer (default /dev/ttyACM0)")
	baudRate   = flag.Int("baud", 0, "Serial baud rate (default 500000)")
	frameDelay = flag.Duration("frame-delay", 0, "Pause after each parameter frame (default 10ms)")

	midiPort    = flag.String("midi-port", "", "MIDI output port name fragment (default: first available)")
	midiChannel = flag.Int("midi-channel", -1, "MIDI channel 0-15 (default 0)")
	note        = flag.Int("note", -1, "Trigger note number (default 60)")
	velocity    = flag.Int("velocity", -1, "Trigger note velocity (default 127)")
	noteHold    = flag.Duration("hold", 0, "How long the trigger note is held (default 10s)")

	audioDevice  = flag.String("audio-device", "", "Capture device name fragment (default: system default)")
	sampleRate   = flag.Int("sample-rate", 0, "Capture sample rate (default 48000)")
	channels     = flag.Int("channels", 0, "Capture channel count (default 2)")
	preRoll      = flag.Duration("pre-roll", 0, "Capture lead time before note-on (default 100ms)")
	tail         = flag.Duration("tail", 0, "Capture time kept after note-off (default 1s)")
	testWindow   = flag.Duration("test-window", 0, "Window length for the silence decision (default 3s)")
	stallTimeout = flag.Duration("stall-timeout", 0, "Capture stream stall timeout (default 2s)")

	silenceThreshold = flag.Float64("silence-threshold", -1, "Normalized RMS below which a patch is silent (default 0.01)")

	durationHours = flag.Float64("duration", -1, "Stop after this many hours (default 24)")
	sampleDelay   = flag.Duration("sample-delay", 0, "Pause between combinations (default 500ms)")
	resetSettle   = flag.Duration("reset-settle", 0, "Settle time after a device reset (default 1s)")
	frameRetries  = flag.Int("frame-retries", -1, "Write attempts per frame (default 3)")
	retryBackoff  = flag.Duration("retry-backoff", 0, "Pause between write retries (default 50ms)")
	maxFailures   = flag.Int("max-consecutive-failures", 0, "Consecutive transport failures that abort the sweep (default 5)")

	paramSpecs    = flag.String("param-specs", "", "Parameter specification CSV (default param_specs.csv)")
	resultsCSV    = flag.String("csv", "", "Results CSV path (default sweep_results.csv)")
	audioDir      = flag.String("audio-dir", "", "Directory for indexed WAV output (default .)")
	runDB         = flag.String("db", "", "Run-history sqlite path (default patchsweep.db)")
	migrationsDir = flag.String("migrations", "", "Schema migrations directory (default migrations)")
	listen        = flag.String("listen", "", "Status API listen address (default: disabled)")

	debug       = flag.Bool("debug", false, "Log per-frame and per-capture detail")
	showVersion = flag.Bool("version", false, "Print version and exit")

	listMIDI   = flag.Bool("list-midi", false, "List MIDI output ports and exit")
	listAudio  = flag.Bool("list-audio", false, "List audio capture devices and exit")
	listSerial = flag.Bool("list-serial", false, "List serial ports and exit")
	listAll    = flag.Bool("list-all", false, "List all devices and exit")
)

func applyFlagOverrides(cfg *config.SweepConfig) {
	if *serialPort != "" {
		cfg.SerialPort = serialPort
	}
	if *baudRate > 0 {
		cfg.BaudRate = baudRate
	}
	if *frameDelay > 0 {
		s := frameDelay.String()
		cfg.FrameDelay = &s
	}
	if *midiPort != "" {
		cfg.MIDIPort = midiPort
	}
	if *midiChannel >= 0 {
		cfg.MIDIChannel = midiChannel
	}
	if *note >= 0 {
		cfg.Note = note
	}
	if *velocity >= 0 {
		cfg.Velocity = velocity
	}
	if *noteHold > 0 {
		s := noteHold.String()
		cfg.NoteHold = &s
	}
	if *audioDevice != "" {
		cfg.AudioDevice = audioDevice
	}
	if *sampleRate > 0 {
		cfg.SampleRate = sampleRate
	}
	if *channels > 0 {
		cfg.Channels = channels
	}
	if *preRoll > 0 {
		s := preRoll.String()
		cfg.PreRoll = &s
	}
	if *tail > 0 {
		s := tail.String()
		cfg.Tail = &s
	}
	if *testWindow > 0 {
		s := testWindow.String()
		cfg.TestWindow = &s
	}
	if *stallTimeout > 0 {
		s := stallTimeout.String()
		cfg.StallTimeout = &s
	}
	if *silenceThreshold >= 0 {
		cfg.SilenceThreshold = silenceThreshold
	}
	if *durationHours > 0 {
		cfg.DurationHours = durationHours
	}
	if *sampleDelay > 0 {
		s := sampleDelay.String()
		cfg.SampleDelay = &s
	}
	if *resetSettle > 0 {
		s := resetSettle.String()
		cfg.ResetSettle = &s
	}
	if *frameRetries >= 0 {
		cfg.FrameRetries = frameRetries
	}
	if *retryBackoff > 0 {
		s := retryBackoff.String()
		cfg.RetryBackoff = &s
	}
	if *maxFailures > 0 {
		cfg.MaxConsecutiveFailures = maxFailures
	}
	if *paramSpecs != "" {
		cfg.ParamSpecs = paramSpecs
	}
	if *resultsCSV != "" {
		cfg.ResultsCSV = resultsCSV
	}
	if *audioDir != "" {
		cfg.AudioDir = audioDir
	}
	if *runDB != "" {
		cfg.RunDB = runDB
	}
	if *migrationsDir != "" {
		cfg.MigrationsDir = migrationsDir
	}
	if *listen != "" {
		cfg.ListenAddr = listen
	}
}

func listDevices(midi, audio, serial bool) error {
	if midi {
		ports, err := midiout.ListPorts()
		if err != nil {
			return fmt.Errorf("list MIDI ports: %w", err)
		}
		fmt.Println("MIDI outputs:")
		for _, p := range ports {
			fmt.Printf("  %s\n", p)
		}
	}
	if audio {
		devices, err := capture.ListDevices()
		if err != nil {
			return fmt.Errorf("list capture devices: %w", err)
		}
		fmt.Println("Capture devices:")
		for _, d := range devices {
			if d.Default {
				fmt.Printf("  %s (default)\n", d.Name)
			} else {
				fmt.Printf("  %s\n", d.Name)
			}
		}
	}
	if serial {
		ports, err := synthlink.ListPorts()
		if err != nil {
			return fmt.Errorf("list serial ports: %w", err)
		}
		fmt.Println("Serial ports:")
		for _, p := range ports {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)

	if *showVersion {
		fmt.Printf("patchsweep %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listAll || *listMIDI || *listAudio || *listSerial {
		all := *listAll
		if err := listDevices(all || *listMIDI, all || *listAudio, all || *listSerial); err != nil {
			log.Fatalf("device listing failed: %v", err)
		}
		return
	}

	cfg := config.EmptySweepConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadSweepConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	specs, err := params.LoadSpecs(cfg.GetParamSpecs())
	if err != nil {
		log.Fatalf("failed to load parameter specs: %v", err)
	}
	space, err := params.NewSpace(specs)
	if err != nil {
		log.Fatalf("invalid parameter space: %v", err)
	}
	log.Printf("parameter space: %d parameters, %d combinations", len(specs), space.Count())

	port, err := synthlink.Open(cfg.GetSerialPort(), synthlink.PortOptions{BaudRate: cfg.GetBaudRate()})
	if err != nil {
		log.Fatalf("failed to open serial port: %v", err)
	}
	programmer := synthlink.NewProgrammer(port, synthlink.ProgrammerConfig{
		FrameDelay: cfg.GetFrameDelay(),
		Retries:    cfg.GetFrameRetries(),
		Backoff:    cfg.GetRetryBackoff(),
	})
	defer programmer.Close()

	out, err := midiout.OpenOutput(cfg.GetMIDIPort())
	if err != nil {
		log.Fatalf("failed to open MIDI output: %v", err)
	}
	defer out.Close()
	log.Printf("using MIDI output %q", out.Name())

	striker := midiout.NewStriker(out, midiout.StrikeConfig{
		Channel:  uint8(cfg.GetMIDIChannel()),
		Note:     uint8(cfg.GetNote()),
		Velocity: uint8(cfg.GetVelocity()),
		Hold:     cfg.GetNoteHold(),
		Retries:  cfg.GetFrameRetries(),
		Backoff:  cfg.GetRetryBackoff(),
	})

	recorder, err := capture.NewStreamRecorder(capture.DeviceOptions{
		Name:         cfg.GetAudioDevice(),
		SampleRate:   cfg.GetSampleRate(),
		Channels:     cfg.GetChannels(),
		StallTimeout: cfg.GetStallTimeout(),
	})
	if err != nil {
		log.Fatalf("failed to open capture device: %v", err)
	}
	defer recorder.Close()

	if err := os.MkdirAll(cfg.GetAudioDir(), 0755); err != nil {
		log.Fatalf("failed to create audio directory: %v", err)
	}

	resume, err := results.ResumeIndex(cfg.GetResultsCSV())
	if err != nil {
		log.Fatalf("failed to determine resume point: %v", err)
	}
	store, err := results.Open(cfg.GetResultsCSV(), space.Params())
	if err != nil {
		log.Fatalf("failed to open results store: %v", err)
	}
	defer store.Close()

	database, err := db.OpenDB(cfg.GetRunDB())
	if err != nil {
		log.Fatalf("failed to open run database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(cfg.GetMigrationsDir()); err != nil {
		log.Fatalf("failed to migrate run database: %v", err)
	}

	runner, err := sweep.NewRunner(sweep.Config{
		Space:                  space,
		Programmer:             programmer,
		Striker:                striker,
		Recorder:               recorder,
		Store:                  store,
		AudioDir:               cfg.GetAudioDir(),
		StartIndex:             resume,
		PreRoll:                cfg.GetPreRoll(),
		Hold:                   cfg.GetNoteHold(),
		Tail:                   cfg.GetTail(),
		TestWindow:             cfg.GetTestWindow(),
		SilenceThreshold:       cfg.GetSilenceThreshold(),
		SampleDelay:            cfg.GetSampleDelay(),
		ResetSettle:            cfg.GetResetSettle(),
		Budget:                 cfg.GetDuration(),
		MaxConsecutiveFailures: cfg.GetMaxConsecutiveFailures(),
	})
	if err != nil {
		log.Fatalf("failed to build sweep: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if addr := cfg.GetListenAddr(); addr != "" {
		apiServer := api.NewServer(runner, database, store.Path(), cfg.GetAudioDir(), cfg.GetSilenceThreshold())
		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(apiServer.ServeMux()),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("failed to start status server: %v", err)
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("status server shutdown error: %v", err)
			}
		}()
		log.Printf("status API listening on %s", addr)
	}

	run := &db.Run{
		ResumeIndex: int64(resume),
		SpaceCount:  int64(space.Count()),
		ResultsCSV:  store.Path(),
	}
	if err := database.CreateRun(run); err != nil {
		log.Fatalf("failed to record run start: %v", err)
	}

	summary, runErr := runner.Run(ctx)

	tallies := db.RunTallies{
		Processed: int64(summary.Processed),
		Audible:   int64(summary.Audible),
		Silent:    int64(summary.Silent),
		Errors:    int64(summary.Errors),
	}
	if err := database.FinishRun(run.ID, time.Now(), tallies, summary.StopReason); err != nil {
		log.Printf("failed to record run end: %v", err)
	}

	rows, err := results.ReadAll(store.Path())
	if err != nil {
		log.Printf("failed to read results for report: %v", err)
	} else if len(rows) > 0 {
		log.Printf("sweep totals: %s", report.Summarize(rows))
		reportDir := filepath.Dir(store.Path())
		if err := report.WriteArtifacts(reportDir, rows, cfg.GetSilenceThreshold()); err != nil {
			log.Printf("failed to write report artifacts: %v", err)
		} else {
			log.Printf("report artifacts written to %s", reportDir)
		}
	}

	// Release the signal context so the status server goroutine exits.
	stop()
	wg.Wait()

	if runErr != nil {
		log.Fatalf("sweep aborted: %v", runErr)
	}
	log.Printf("sweep finished after %d combinations (%s)", summary.Processed, summary.StopReason)
}
