package store

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is bumped whenever the table layout changes.
// Startup refuses to run against a database stamped with a version newer
// than this build understands; a stamped version older than current is
// where forward migrations would be applied.
const CurrentSchemaVersion = "1.0.0"

var currentSchemaVersion = semver.MustParse(CurrentSchemaVersion)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (version TEXT NOT NULL);

CREATE TABLE IF NOT EXISTS queue (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	seq          INTEGER NOT NULL,
	process_type TEXT NOT NULL,
	path         TEXT NOT NULL,
	job_time     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS currently_processing (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	process_type TEXT NOT NULL,
	path         TEXT NOT NULL,
	job_time     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS video_info (
	logical_name          TEXT PRIMARY KEY,
	absolute_path         TEXT NOT NULL,
	ctime                 INTEGER NOT NULL,
	transcript_present    INTEGER NOT NULL DEFAULT 0,
	transcript_line_count INTEGER NOT NULL DEFAULT 0,
	transcript_mtime      INTEGER NOT NULL DEFAULT 0,
	length                TEXT NOT NULL DEFAULT '',
	source                TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS video_parts (
	base_name         TEXT NOT NULL,
	part_number       INTEGER NOT NULL,
	source_path       TEXT NOT NULL UNIQUE,
	processed_at      INTEGER NOT NULL,
	transcript_length INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (base_name, part_number)
);
`

// Open opens (creating if needed) the sqlite-backed store at path and
// applies schema migrations. Callers share the *sql.DB across the queue
// and metadata-index packages; sqlite serializes writers internally.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer contract; avoid sqlite lock contention

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return fmt.Errorf("stamp schema_version: %w", err)
		}
		return nil
	}

	var raw string
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&raw); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	version, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("parse stamped schema version %q: %w", raw, err)
	}
	if version.GreaterThan(currentSchemaVersion) {
		return fmt.Errorf("database schema version %s is newer than supported version %s", version, currentSchemaVersion)
	}
	// Forward migrations would be applied here, keyed on version.Compare
	// against intermediate releases, as version is stepped up to
	// CurrentSchemaVersion. There is only one version so far.
	return nil
}
