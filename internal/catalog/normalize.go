// SPDX-License-Identifier: MIT

// Package catalog normalizes channel import payloads into the canonical
// schema.
//
// Catalog exports from different sources use different field names for the
// same thing (channelId vs id, tvgLogo vs channelImg vs logo). Aliases are
// resolved here, at the ingestion boundary, so the store and every core
// component only ever see canonical channels.
package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/chandir/chandir/internal/types"
)

// rawChannel accepts all known field aliases of a channel import entry.
type rawChannel struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`

	Name        string `json:"name"`
	ChannelName string `json:"channelName"`

	Group        string `json:"group"`
	Category     string `json:"category"`
	ChannelGroup string `json:"channelGroup"`

	TvgName string `json:"tvgName"`

	Logo       string `json:"logo"`
	TvgLogo    string `json:"tvgLogo"`
	ChannelImg string `json:"channelImg"`

	URL        string `json:"url"`
	StreamURL  string `json:"streamUrl"`
	ChannelURL string `json:"channelUrl"`

	DRMType string `json:"drmType"`
	DRMKey  string `json:"drmKey"`

	Order  int   `json:"order"`
	Active *bool `json:"isActive"`
}

// Decode parses a JSON array of channel entries and normalizes each one.
// Entries without a usable identity or stream URL are rejected with a
// per-entry error naming the position.
func Decode(data []byte) ([]types.Channel, error) {
	var raw []rawChannel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: payload must be a JSON array of channels: %w", err)
	}

	out := make([]types.Channel, 0, len(raw))
	for i, r := range raw {
		c, err := normalize(r)
		if err != nil {
			return nil, fmt.Errorf("catalog: entry %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func normalize(r rawChannel) (types.Channel, error) {
	c := types.Channel{
		ChannelID:    firstOf(r.ChannelID, r.ID),
		ChannelName:  firstOf(r.ChannelName, r.Name),
		ChannelGroup: firstOf(r.ChannelGroup, r.Group, r.Category),
		TvgName:      r.TvgName,
		TvgLogo:      firstOf(r.TvgLogo, r.Logo),
		ChannelImg:   r.ChannelImg,
		ChannelURL:   firstOf(r.ChannelURL, r.URL, r.StreamURL),
		DRMType:      r.DRMType,
		DRMKey:       r.DRMKey,
		Order:        r.Order,
		Active:       true,
	}
	if r.Active != nil {
		c.Active = *r.Active
	}
	if c.ChannelGroup == "" {
		c.ChannelGroup = types.DefaultGroup
	}

	if c.ChannelID == "" {
		return types.Channel{}, fmt.Errorf("missing channel id")
	}
	if c.ChannelName == "" {
		return types.Channel{}, fmt.Errorf("missing channel name")
	}
	if err := validStreamURL(c.ChannelURL); err != nil {
		return types.Channel{}, err
	}
	return c, nil
}

func validStreamURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("missing stream URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid stream URL %q: scheme and host required", raw)
	}
	return nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
