package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one sweep invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	EndedAt     sql.NullTime
	ResumeIndex int64
	SpaceCount  int64
	Processed   int64
	Audible     int64
	Silent      int64
	Errors      int64
	StopReason  string
	ResultsCSV  string
}

// RunTallies are the final per-status counts of a finished run.
type RunTallies struct {
	Processed int64
	Audible   int64
	Silent    int64
	Errors    int64
}

// CreateRun inserts a new run row. A missing ID is filled with a fresh UUID.
func (db *DB) CreateRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO sweep_runs (id, started_at, resume_index, space_count, results_csv)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(time.RFC3339Nano), run.ResumeIndex, run.SpaceCount, run.ResultsCSV,
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stamps the end of a run with its final tallies and stop reason.
func (db *DB) FinishRun(id string, endedAt time.Time, tallies RunTallies, stopReason string) error {
	res, err := db.Exec(`
		UPDATE sweep_runs
		SET ended_at = ?, processed = ?, audible = ?, silent = ?, errors = ?, stop_reason = ?
		WHERE id = ?`,
		endedAt.Format(time.RFC3339Nano), tallies.Processed, tallies.Audible, tallies.Silent, tallies.Errors, stopReason, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

// GetRun fetches one run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, started_at, ended_at, resume_index, space_count,
		       processed, audible, silent, errors, stop_reason, results_csv
		FROM sweep_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, started_at, ended_at, resume_index, space_count,
		       processed, audible, silent, errors, stop_reason, results_csv
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// Timestamps are stored as RFC 3339 text and converted here rather than
// trusting the driver's declared-type detection.
func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(
		&run.ID, &startedAt, &endedAt, &run.ResumeIndex, &run.SpaceCount,
		&run.Processed, &run.Audible, &run.Silent, &run.Errors, &run.StopReason, &run.ResultsCSV,
	)
	if err != nil {
		return nil, err
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		run.EndedAt = sql.NullTime{Time: t, Valid: true}
	}
	return &run, nil
}
