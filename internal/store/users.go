// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chandir/chandir/internal/code"
	"github.com/chandir/chandir/internal/types"
)

// UserCodeSpace exposes the user code namespace to the code generator.
// User and playlist codes are independently unique: lookups must never
// cross-match one space against the other.
func (s *Store) UserCodeSpace() code.Space {
	return codeSpace{db: s.db, table: "users"}
}

// PlaylistCodeSpace exposes the playlist code namespace to the code generator.
func (s *Store) PlaylistCodeSpace() code.Space {
	return codeSpace{db: s.db, table: "playlists"}
}

type codeSpace struct {
	db    *sql.DB
	table string
}

func (cs codeSpace) ExistsByCode(ctx context.Context, c string) (bool, error) {
	var one int
	err := cs.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+cs.table+` WHERE code = ?`, code.Normalize(c)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: code lookup in %s: %w", cs.table, err)
	}
	return true, nil
}

// nullable maps the empty string to NULL so optional unique columns never
// collide on "".
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// resolveChannelRowIDs maps import-stable channel ids to channel row ids
// inside tx. An unknown id fails the whole resolution with ErrNotFound.
func resolveChannelRowIDs(ctx context.Context, tx *sql.Tx, channelIDs []string) ([]string, error) {
	rowIDs := make([]string, 0, len(channelIDs))
	for _, cid := range channelIDs {
		var rowID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM channels WHERE channel_id = ?`, cid).Scan(&rowID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %q: %w", cid, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("store: resolve channel %q: %w", cid, err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	return rowIDs, nil
}

// CreateUser inserts a user and, when channelIDs are given, its channel
// membership list in one transaction, so a bad channel id never leaves an
// orphaned user row. channelIDs are import-stable channel ids. The caller
// provides a freshly generated code; the unique index on users.code turns
// a lost generation race into a conflict error the caller retries on
// (see IsConflictOn).
func (s *Store) CreateUser(ctx context.Context, u types.User, channelIDs ...string) (types.User, error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if !u.Role.IsValid() {
		u.Role = types.RoleUser
	}
	u.Code = code.Normalize(u.Code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.User{}, fmt.Errorf("store: create user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role, code) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, nullable(u.Email), u.Role, u.Code)
	if err != nil {
		return types.User{}, fmt.Errorf("store: create user: %w", err)
	}

	if len(channelIDs) > 0 {
		rowIDs, err := resolveChannelRowIDs(ctx, tx, channelIDs)
		if err != nil {
			return types.User{}, err
		}
		for _, id := range rowIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_channels (user_id, channel_id) VALUES (?, ?)`, u.ID, id); err != nil {
				return types.User{}, fmt.Errorf("store: create user membership: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.User{}, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// FindUserByID looks up a user by row id.
func (s *Store) FindUserByID(ctx context.Context, id string) (types.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role, code FROM users WHERE id = ?`, id), id)
}

// FindUserByCode resolves a playlist code in the user space.
func (s *Store) FindUserByCode(ctx context.Context, c string) (types.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, role, code FROM users WHERE code = ?`,
		code.Normalize(c)), c)
}

func (s *Store) scanUser(row *sql.Row, key string) (types.User, error) {
	var (
		u     types.User
		email sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.Role, &u.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, fmt.Errorf("user %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return types.User{}, fmt.Errorf("store: find user: %w", err)
	}
	u.Email = email.String
	return u, nil
}

// SetUserChannels replaces a user's channel membership list. channelIDs
// are import-stable channel ids, resolved to row ids in the same
// transaction as the replace.
func (s *Store) SetUserChannels(ctx context.Context, userID string, channelIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: set user channels: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rowIDs, err := resolveChannelRowIDs(ctx, tx, channelIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_channels WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("store: set user channels: %w", err)
	}
	for _, id := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_channels (user_id, channel_id) VALUES (?, ?)`, userID, id); err != nil {
			return fmt.Errorf("store: set user channels: %w", err)
		}
	}
	return tx.Commit()
}

// CreatePlaylist inserts a playlist with its caller-generated code and,
// when channelIDs are given, its channel selection in one transaction.
// Ownership is optional; an empty UserID stores NULL.
func (s *Store) CreatePlaylist(ctx context.Context, p types.Playlist, channelIDs ...string) (types.Playlist, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Code = code.Normalize(p.Code)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Playlist{}, fmt.Errorf("store: create playlist: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO playlists (id, user_id, name, code, public) VALUES (?, ?, ?, ?, ?)`,
		p.ID, nullable(p.UserID), p.Name, p.Code, p.Public)
	if err != nil {
		return types.Playlist{}, fmt.Errorf("store: create playlist: %w", err)
	}

	if len(channelIDs) > 0 {
		rowIDs, err := resolveChannelRowIDs(ctx, tx, channelIDs)
		if err != nil {
			return types.Playlist{}, err
		}
		for pos, id := range rowIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO playlist_channels (playlist_id, channel_id, position) VALUES (?, ?, ?)`,
				p.ID, id, pos); err != nil {
				return types.Playlist{}, fmt.Errorf("store: create playlist selection: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Playlist{}, fmt.Errorf("store: create playlist: %w", err)
	}
	return p, nil
}

// FindPlaylistByCode resolves a code in the playlist space.
func (s *Store) FindPlaylistByCode(ctx context.Context, c string) (types.Playlist, error) {
	var (
		p      types.Playlist
		userID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, code, public FROM playlists WHERE code = ?`,
		code.Normalize(c)).
		Scan(&p.ID, &userID, &p.Name, &p.Code, &p.Public)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Playlist{}, fmt.Errorf("playlist code %q: %w", c, ErrNotFound)
	}
	if err != nil {
		return types.Playlist{}, fmt.Errorf("store: find playlist by code: %w", err)
	}
	p.UserID = userID.String
	return p, nil
}

// SetPlaylistChannels replaces a playlist's channel selection. channelIDs
// are import-stable channel ids.
func (s *Store) SetPlaylistChannels(ctx context.Context, playlistID string, channelIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: set playlist channels: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rowIDs, err := resolveChannelRowIDs(ctx, tx, channelIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_channels WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("store: set playlist channels: %w", err)
	}
	for pos, id := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_channels (playlist_id, channel_id, position) VALUES (?, ?, ?)`,
			playlistID, id, pos); err != nil {
			return fmt.Errorf("store: set playlist channels: %w", err)
		}
	}
	return tx.Commit()
}

// CountUsers returns the user total for the stats view.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
