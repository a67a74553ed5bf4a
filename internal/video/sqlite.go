package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var ErrDuplicateID = errors.New("video ID already exists")

type SQLiteStore struct {
	sqlStore
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			video_url TEXT NOT NULL,
			video_provider_id TEXT NOT NULL DEFAULT '',
			thumbnail_url TEXT,
			thumbnail_provider_id TEXT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			owner_username TEXT NOT NULL DEFAULT '',
			owner_full_name TEXT NOT NULL DEFAULT '',
			owner_avatar TEXT NOT NULL DEFAULT '',
			is_published BOOLEAN NOT NULL DEFAULT 1,
			views INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_videos_owner_id ON videos(owner_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{sqlStore{db: db}}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, rec *Record) (string, error) {
	id, err := s.sqlStore.Create(ctx, rec)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return "", ErrDuplicateID
		}
		return "", err
	}
	return id, nil
}
