// Package store persists detection results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Results maps a prompt key to the label the model produced for it.
type Results struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Results, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create result cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Results{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Results) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS results (
  key TEXT PRIMARY KEY,
  label TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  hits INTEGER NOT NULL DEFAULT 0
);
`)
	if err != nil {
		return fmt.Errorf("migrate result cache: %w", err)
	}
	return nil
}

func (s *Results) Get(ctx context.Context, key string) (string, bool, error) {
	var label string
	err := s.db.QueryRowContext(ctx, "SELECT label FROM results WHERE key=?;", key).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE results SET hits = hits + 1 WHERE key=?;", key); err != nil {
		return "", false, err
	}
	return label, true, nil
}

func (s *Results) Put(ctx context.Context, key, label string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO results (key, label, created_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET label=excluded.label, created_at=excluded.created_at;`,
		key, label, s.now().Unix())
	return err
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int64
	Hits    int64
}

func (s *Results) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM results;").Scan(&st.Entries, &st.Hits)
	return st, err
}

// Prune deletes entries stored before cutoff and returns how many went.
func (s *Results) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE created_at < ?;", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Results) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
