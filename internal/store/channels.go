// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chandir/chandir/internal/types"
)

// Columns are table-qualified so selects stay unambiguous when joined
// against the membership tables, which carry their own channel_id.
const channelColumns = `channels.id, channels.channel_id, channels.channel_name,
	channels.channel_group, channels.tvg_name, channels.tvg_logo,
	channels.channel_img, channels.channel_url, channels.drm_type, channels.drm_key,
	channels.sort_order, channels.active,
	channels.last_tested, channels.working, channels.response_time`

func scanChannel(row interface{ Scan(...any) error }) (types.Channel, error) {
	var (
		c          types.Channel
		lastTested sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.ChannelID, &c.ChannelName, &c.ChannelGroup, &c.TvgName, &c.TvgLogo,
		&c.ChannelImg, &c.ChannelURL, &c.DRMType, &c.DRMKey, &c.Order, &c.Active,
		&lastTested, &c.Working, &c.ResponseTime,
	)
	if err != nil {
		return types.Channel{}, err
	}
	if lastTested.Valid {
		if ts, perr := time.Parse(time.RFC3339Nano, lastTested.String); perr == nil {
			c.LastTested = &ts
		}
	}
	return c, nil
}

// FindChannelByID looks up a channel by its import-stable channel_id.
func (s *Store) FindChannelByID(ctx context.Context, channelID string) (types.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE channel_id = ?`, channelID)
	c, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Channel{}, fmt.Errorf("channel %q: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return types.Channel{}, fmt.Errorf("store: find channel: %w", err)
	}
	return c, nil
}

// FindChannelsByIDs returns the channels matching the given channel_ids,
// keyed by channel_id. Missing ids are simply absent from the result.
func (s *Store) FindChannelsByIDs(ctx context.Context, channelIDs []string) (map[string]types.Channel, error) {
	found := make(map[string]types.Channel, len(channelIDs))
	for _, id := range channelIDs {
		c, err := s.FindChannelByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found[id] = c
	}
	return found, nil
}

// FindActiveChannels returns all active channels sorted ascending by
// (channel_group, sort_order), the order the serializer expects.
func (s *Store) FindActiveChannels(ctx context.Context) ([]types.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels
		 WHERE active = 1
		 ORDER BY channel_group ASC, sort_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// FindChannelsForUser returns the active channels visible to a user: the
// whole catalog for admins, the explicit membership list otherwise.
func (s *Store) FindChannelsForUser(ctx context.Context, u types.User) ([]types.Channel, error) {
	if u.Role == types.RoleAdmin {
		return s.FindActiveChannels(ctx)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels
		 JOIN user_channels uc ON uc.channel_id = channels.id
		 WHERE uc.user_id = ? AND active = 1
		 ORDER BY channel_group ASC, sort_order ASC`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("store: list user channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// FindChannelsForPlaylist returns a playlist's active channels in playlist
// order grouping: (channel_group, sort_order) ascending.
func (s *Store) FindChannelsForPlaylist(ctx context.Context, playlistID string) ([]types.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels
		 JOIN playlist_channels pc ON pc.channel_id = channels.id
		 WHERE pc.playlist_id = ? AND active = 1
		 ORDER BY channel_group ASC, sort_order ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("store: list playlist channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

func collectChannels(rows *sql.Rows) ([]types.Channel, error) {
	var out []types.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan channel: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate channels: %w", err)
	}
	return out, nil
}

// UpdateChannelStatus persists a probe outcome onto one channel as a single
// atomic UPDATE: lastTested, working and responseTime never tear.
func (s *Store) UpdateChannelStatus(ctx context.Context, channelID string, lastTested time.Time, working types.WorkingState, responseTimeMs int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE channels SET last_tested = ?, working = ?, response_time = ?
		 WHERE channel_id = ?`,
		lastTested.UTC().Format(time.RFC3339Nano), working, responseTimeMs, channelID)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("channel %q: %w", channelID, ErrNotFound)
	}
	return nil
}

// InsertChannel adds a single channel record.
func (s *Store) InsertChannel(ctx context.Context, c types.Channel) (types.Channel, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ChannelGroup == "" {
		c.ChannelGroup = types.DefaultGroup
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, channel_id, channel_name, channel_group, tvg_name, tvg_logo,
			channel_img, channel_url, drm_type, drm_key, sort_order, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ChannelID, c.ChannelName, c.ChannelGroup, c.TvgName, c.TvgLogo,
		c.ChannelImg, c.ChannelURL, c.DRMType, c.DRMKey, c.Order, c.Active)
	if err != nil {
		return types.Channel{}, fmt.Errorf("store: insert channel: %w", err)
	}
	return c, nil
}

// ImportChannels upserts a batch of normalized channels keyed by channel_id.
// Test metadata of existing rows is preserved.
func (s *Store) ImportChannels(ctx context.Context, channels []types.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: import begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO channels (id, channel_id, channel_name, channel_group, tvg_name, tvg_logo,
			channel_img, channel_url, drm_type, drm_key, sort_order, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
			channel_name = excluded.channel_name,
			channel_group = excluded.channel_group,
			tvg_name = excluded.tvg_name,
			tvg_logo = excluded.tvg_logo,
			channel_img = excluded.channel_img,
			channel_url = excluded.channel_url,
			drm_type = excluded.drm_type,
			drm_key = excluded.drm_key,
			sort_order = excluded.sort_order,
			active = excluded.active`)
	if err != nil {
		return fmt.Errorf("store: import prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range channels {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.ChannelGroup == "" {
			c.ChannelGroup = types.DefaultGroup
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.ChannelID, c.ChannelName, c.ChannelGroup, c.TvgName, c.TvgLogo,
			c.ChannelImg, c.ChannelURL, c.DRMType, c.DRMKey, c.Order, c.Active); err != nil {
			return fmt.Errorf("store: import channel %q: %w", c.ChannelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: import commit: %w", err)
	}
	return nil
}

// ReplaceCatalog atomically swaps the entire channel catalog.
func (s *Store) ReplaceCatalog(ctx context.Context, channels []types.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM channels`); err != nil {
		return fmt.Errorf("store: replace clear: %w", err)
	}
	for _, c := range channels {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.ChannelGroup == "" {
			c.ChannelGroup = types.DefaultGroup
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channels (id, channel_id, channel_name, channel_group, tvg_name, tvg_logo,
				channel_img, channel_url, drm_type, drm_key, sort_order, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ChannelID, c.ChannelName, c.ChannelGroup, c.TvgName, c.TvgLogo,
			c.ChannelImg, c.ChannelURL, c.DRMType, c.DRMKey, c.Order, c.Active); err != nil {
			return fmt.Errorf("store: replace insert %q: %w", c.ChannelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: replace commit: %w", err)
	}
	return nil
}

// CountChannels returns total and working channel counts for the stats view.
func (s *Store) CountChannels(ctx context.Context) (total, working, notWorking int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE working WHEN 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE working WHEN 0 THEN 1 ELSE 0 END), 0)
		 FROM channels`)
	if err = row.Scan(&total, &working, &notWorking); err != nil {
		return 0, 0, 0, fmt.Errorf("store: count channels: %w", err)
	}
	return total, working, notWorking, nil
}
