// Package history persists a record of each download run to a local SQLite
// database so past runs can be reviewed with the history command.
package history

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	min_stars   INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Record is one persisted download run
type Record struct {
	ID         string    `db:"id" json:"id" yaml:"id"`
	Mode       string    `db:"mode" json:"mode" yaml:"mode"`
	Query      string    `db:"query" json:"query,omitempty" yaml:"query,omitempty"`
	MinStars   int       `db:"min_stars" json:"minStars" yaml:"min_stars"`
	Total      int       `db:"total" json:"total" yaml:"total"`
	Succeeded  int       `db:"succeeded" json:"succeeded" yaml:"succeeded"`
	Failed     int       `db:"failed" json:"failed" yaml:"failed"`
	Skipped    int       `db:"skipped" json:"skipped" yaml:"skipped"`
	DurationMS int64     `db:"duration_ms" json:"durationMs" yaml:"duration_ms"`
	StartedAt  time.Time `db:"started_at" json:"startedAt" yaml:"started_at"`
}

// Store is a SQLite-backed run history
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// NewStore opens (creating if necessary) the history database at dbPath
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists one run record
func (s *Store) RecordRun(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("run record requires an id")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, mode, query, min_stars, total, succeeded, failed, skipped, duration_ms, started_at)
		VALUES (:id, :mode, :query, :min_stars, :total, :succeeded, :failed, :skipped, :duration_ms, :started_at)`,
		rec)
	return errors.Wrap(err, "failed to insert run record")
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT * FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	return records, nil
}
