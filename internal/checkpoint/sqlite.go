package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	name       TEXT PRIMARY KEY,
	seen       TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// SQLiteStore keeps checkpoints in a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, trigger string) (State, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, "SELECT seen FROM checkpoints WHERE name = ?", trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("loading checkpoint %q: %w", trigger, err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state.Seen); err != nil {
		return State{}, fmt.Errorf("decoding checkpoint %q: %w", trigger, err)
	}
	return state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, trigger string, state State) error {
	seen := state.Seen
	if seen == nil {
		seen = []string{}
	}
	raw, err := json.Marshal(seen)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %q: %w", trigger, err)
	}

	const query = `
		INSERT INTO checkpoints (name, seen, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET seen = excluded.seen, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, trigger, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving checkpoint %q: %w", trigger, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
