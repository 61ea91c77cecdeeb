// SPDX-License-Identifier: MIT

// Package store persists users, playlists and channels in SQLite.
//
// The UNIQUE indexes on users.code, playlists.code and channels.channel_id
// are the storage-level race-breakers behind the code generator: two
// concurrent writers proposing the same code lose the race here and retry
// generation.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("store: not found")

// sqliteConstraintUnique is the SQLITE_CONSTRAINT_UNIQUE extended result code.
const sqliteConstraintUnique = 2067

// IsConflict reports whether err is a unique-constraint violation, the signal
// for a caller to retry code generation.
func IsConflict(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqliteConstraintUnique
}

// IsConflictOn reports whether err is a unique-constraint violation on the
// given column, e.g. "users.code". SQLite names the failing column in the
// error message, which lets callers tell a lost code-generation race apart
// from a duplicate username or email.
func IsConflictOn(err error, column string) bool {
	return IsConflict(err) && strings.Contains(err.Error(), column)
}

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended SQLite configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Store wraps the SQLite handle with typed accessors.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite connection pool with mandatory PRAGMAs and
// applies the schema migration.
func Open(dbPath string, cfg Config) (*Store, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}

	// PRAGMAs in the DSN apply to every connection in the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity, used by readiness checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT UNIQUE,
	role          TEXT NOT NULL DEFAULT 'user',
	code          TEXT NOT NULL,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_code ON users(code);

CREATE TABLE IF NOT EXISTS playlists (
	id            TEXT PRIMARY KEY,
	user_id       TEXT REFERENCES users(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	code          TEXT NOT NULL,
	public        INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_code ON playlists(code);

CREATE TABLE IF NOT EXISTS channels (
	id            TEXT PRIMARY KEY,
	channel_id    TEXT NOT NULL,
	channel_name  TEXT NOT NULL,
	channel_group TEXT NOT NULL DEFAULT 'Uncategorized',
	tvg_name      TEXT NOT NULL DEFAULT '',
	tvg_logo      TEXT NOT NULL DEFAULT '',
	channel_img   TEXT NOT NULL DEFAULT '',
	channel_url   TEXT NOT NULL,
	drm_type      TEXT NOT NULL DEFAULT '',
	drm_key       TEXT NOT NULL DEFAULT '',
	sort_order    INTEGER NOT NULL DEFAULT 0,
	active        INTEGER NOT NULL DEFAULT 1,
	last_tested   TEXT,
	working       INTEGER,
	response_time INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_channel_id ON channels(channel_id);
CREATE INDEX IF NOT EXISTS idx_channels_group_order ON channels(channel_group, sort_order);

CREATE TABLE IF NOT EXISTS user_channels (
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, channel_id)
);

CREATE TABLE IF NOT EXISTS playlist_channels (
	playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	channel_id  TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (playlist_id, channel_id)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate failed: %w", err)
	}
	return nil
}
