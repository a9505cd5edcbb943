package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal created by an older schema. Each runs once,
// in order, and bumps PRAGMA user_version to its version.
type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{
		version: 1,
		name:    "index artifacts by id",
		stmt: `CREATE INDEX IF NOT EXISTS idx_artifacts_artifact_id
			ON artifacts(artifact_id, run_id, seq)`,
	},
	{
		version: 2,
		name:    "index conditions by defining artifact",
		stmt: `CREATE INDEX IF NOT EXISTS idx_conditions_artifact
			ON conditions(run_id, artifact_id)`,
	},
}

// schemaVersion is the user_version of a fully migrated journal.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// pragma is a connection setting and the value PRAGMA reports once set.
type pragma struct {
	name, value, want string
}

var pragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// Store is the preprocessing journal: runs, the artifacts each run
// processed and the conditions it defined.
//
// A Store holds a single connection. SQLite allows one writer, and the
// pipeline journals artifacts one at a time in processing order.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path and brings its schema up to
// date. Opening an existing journal is safe and leaves its data intact.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return s.migrate()
}

// migrate runs every migration newer than the journal's user_version.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the journal. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// checkPragmas reports the first setting that does not hold.
func (s *Store) checkPragmas() error {
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("read %s: %w", p.name, err)
		}
		if got != p.want {
			return fmt.Errorf("%s = %q, want %q", p.name, got, p.want)
		}
	}
	return nil
}
