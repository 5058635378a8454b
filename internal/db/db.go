// Package db keeps the history of sweep runs in sqlite: when each run
// started, where it resumed, and how it ended. The CSV store remains the
// system of record for per-combination results; this database only answers
// "what has this rig been doing".
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the run-history database.
type DB struct {
	*sql.DB
}

// OpenDB opens (creating if needed) the sqlite database at path. The schema
// is managed by migrations; callers run MigrateUp before first use.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database %s: %w", path, err)
	}
	return &DB{sqlDB}, nil
}
