package db

import (
	"os"
	"path/filepath"
	"testing"
)

// openBareDB opens a fresh database file with no schema applied.
func openBareDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// writeTestMigrations creates a temporary directory with test migration files
// and returns its path.
func writeTestMigrations(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	migrations := map[string]string{
		"000001_create_probe_table.up.sql": `
			CREATE TABLE IF NOT EXISTS probe (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
		`,
		"000001_create_probe_table.down.sql": `
			DROP TABLE IF EXISTS probe;
		`,
		"000002_add_probe_note.up.sql": `
			ALTER TABLE probe ADD COLUMN note TEXT;
		`,
		"000002_add_probe_note.down.sql": `
			-- SQLite doesn't support DROP COLUMN directly, so we need to recreate the table
			CREATE TABLE probe_new (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
			INSERT INTO probe_new (id, name) SELECT id, name FROM probe;
			DROP TABLE probe;
			ALTER TABLE probe_new RENAME TO probe;
		`,
	}

	for filename, content := range migrations {
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write migration file %s: %v", filename, err)
		}
	}

	return dir
}

func TestMigrateUp(t *testing.T) {
	db := openBareDB(t)
	dir := writeTestMigrations(t)

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}

	var tableExists bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='probe'
	`).Scan(&tableExists)
	if err != nil {
		t.Fatalf("failed to check probe table: %v", err)
	}
	if !tableExists {
		t.Error("probe table should exist after migration")
	}

	var hasNote bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('probe')
		WHERE name='note'
	`).Scan(&hasNote)
	if err != nil {
		t.Fatalf("failed to check note column: %v", err)
	}
	if !hasNote {
		t.Error("note column should exist after second migration")
	}
}

func TestMigrateUpIdempotency(t *testing.T) {
	db := openBareDB(t)
	dir := writeTestMigrations(t)

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("first MigrateUp failed: %v", err)
	}
	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	version, _, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2 after idempotent up, got %d", version)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openBareDB(t)
	dir := writeTestMigrations(t)

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateDown(dir); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1 after down migration, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful down migration")
	}

	var hasNote bool
	err = db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('probe')
		WHERE name='note'
	`).Scan(&hasNote)
	if err != nil {
		t.Fatalf("failed to check note column: %v", err)
	}
	if hasNote {
		t.Error("note column should not exist after rolling back second migration")
	}
}

func TestMigrateVersionFreshDatabase(t *testing.T) {
	db := openBareDB(t)
	dir := writeTestMigrations(t)

	version, dirty, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on a fresh database, got %d", version)
	}
	if dirty {
		t.Error("fresh database should not be dirty")
	}
}
