// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/courseflow/internal/persistence/sqlite"
)

const schemaVersion = 1

var errClosed = errors.New("resume: store closed")

// SQLiteStore keeps entries in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("resume store: create dir: %w", err)
	}
	db, err := sqlite.Open(ctx, dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resume store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		viewer_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		video_id TEXT NOT NULL,
		position_s INTEGER NOT NULL,
		duration_s INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (viewer_id, course_id, video_id)
	);`
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Put(ctx context.Context, key Key, entry Entry) error {
	const query = `
	INSERT INTO checkpoints (viewer_id, course_id, video_id, position_s, duration_s, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(viewer_id, course_id, video_id) DO UPDATE SET
		position_s = excluded.position_s,
		duration_s = excluded.duration_s,
		updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		key.ViewerID, key.CourseID, key.VideoID,
		entry.PositionSeconds, entry.DurationSeconds, entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (*Entry, error) {
	const query = `SELECT position_s, duration_s, updated_at FROM checkpoints
	WHERE viewer_id = ? AND course_id = ? AND video_id = ?`
	var (
		e         Entry
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, key.ViewerID, key.CourseID, key.VideoID).
		Scan(&e.PositionSeconds, &e.DurationSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &e, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
