// Package api serves sweep status, run history, and level charts over HTTP
// while a sweep is in progress.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harmonia-data/patchsweep/internal/db"
	"github.com/harmonia-data/patchsweep/internal/monitoring"
	"github.com/harmonia-data/patchsweep/internal/report"
	"github.com/harmonia-data/patchsweep/internal/results"
	"github.com/harmonia-data/patchsweep/internal/security"
	"github.com/harmonia-data/patchsweep/internal/sweep"
)

// ANSI escape codes for the request log.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// SweepStateSource is the slice of the sweep runner the API reads.
type SweepStateSource interface {
	GetSweepState() sweep.SweepState
}

type Server struct {
	state     SweepStateSource
	db        *db.DB
	csvPath   string
	audioDir  string
	threshold float64
}

// NewServer builds a Server. database may be nil when run history is
// disabled; the runs endpoint then answers 503.
func NewServer(state SweepStateSource, database *db.DB, csvPath, audioDir string, threshold float64) *Server {
	return &Server{
		state:     state,
		db:        database,
		csvPath:   csvPath,
		audioDir:  audioDir,
		threshold: threshold,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sweep/status", s.showSweepStatus)
	mux.HandleFunc("/api/sweep/runs", s.listRuns)
	mux.HandleFunc("/charts/levels", s.handleLevelsChart)
	mux.HandleFunc("/audio/", s.serveAudio)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showSweepStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.state == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no sweep attached")
		return
	}

	if err := json.NewEncoder(w).Encode(s.state.GetSweepState()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sweep state")
		return
	}
}

// RunAPI shapes a db.Run for JSON output. Without it the response would
// expose the raw sql.NullTime fields (Time, Valid).
type RunAPI struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ResumeIndex int64      `json:"resume_index"`
	SpaceCount  int64      `json:"space_count"`
	Processed   int64      `json:"processed"`
	Audible     int64      `json:"audible"`
	Silent      int64      `json:"silent"`
	Errors      int64      `json:"errors"`
	StopReason  string     `json:"stop_reason,omitempty"`
	ResultsCSV  string     `json:"results_csv,omitempty"`
}

func runToAPI(run db.Run) RunAPI {
	out := RunAPI{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		ResumeIndex: run.ResumeIndex,
		SpaceCount:  run.SpaceCount,
		Processed:   run.Processed,
		Audible:     run.Audible,
		Silent:      run.Silent,
		Errors:      run.Errors,
		StopReason:  run.StopReason,
		ResultsCSV:  run.ResultsCSV,
	}
	if run.EndedAt.Valid {
		t := run.EndedAt.Time
		out.EndedAt = &t
	}
	return out
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "run history database not configured")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsedLimit, err := strconv.Atoi(l)
		if err != nil || parsedLimit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsedLimit
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}

	apiRuns := make([]RunAPI, len(runs))
	for i, run := range runs {
		apiRuns[i] = runToAPI(run)
	}

	if err := json.NewEncoder(w).Encode(apiRuns); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

func (s *Server) handleLevelsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rows, err := results.ReadAll(s.csvPath)
	if errors.Is(err, os.ErrNotExist) {
		s.writeJSONError(w, http.StatusNotFound, "no results recorded yet")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to read results: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, rows, s.threshold); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// serveAudio hands out captured WAV files by name, e.g. /audio/42.wav or
// /audio/42_test.wav. Requested names are confined to the audio directory.
func (s *Server) serveAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.audioDir == "" {
		s.writeJSONError(w, http.StatusServiceUnavailable, "no audio directory configured")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/audio/")
	if name == "" {
		s.writeJSONError(w, http.StatusBadRequest, "missing file name")
		return
	}

	full := filepath.Join(s.audioDir, filepath.FromSlash(name))
	if err := security.ValidatePathWithinDirectory(full, s.audioDir); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if _, err := os.Stat(full); err != nil {
		s.writeJSONError(w, http.StatusNotFound, "no such audio file")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, full)
}
