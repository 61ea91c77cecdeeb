// SPDX-License-Identifier: MIT

package types

import "time"

// DefaultGroup is assigned to channels imported without a category.
const DefaultGroup = "Uncategorized"

// Channel is the canonical channel record.
//
// Import payloads with aliased field names are normalized into this shape
// at the catalog ingestion boundary; core components never see aliases.
type Channel struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"` // import-stable external identity, unique

	// Display
	ChannelName  string `json:"channelName"`
	ChannelGroup string `json:"channelGroup"`
	TvgName      string `json:"tvgName,omitempty"`
	TvgLogo      string `json:"tvgLogo,omitempty"`
	ChannelImg   string `json:"channelImg,omitempty"`

	// Stream
	ChannelURL string `json:"channelUrl"`
	DRMType    string `json:"drmType,omitempty"` // opaque pass-through
	DRMKey     string `json:"drmKey,omitempty"`  // opaque pass-through

	Order  int  `json:"order"`
	Active bool `json:"isActive"`

	// Test metadata, owned by the batch orchestrator.
	LastTested   *time.Time   `json:"lastTested,omitempty"`
	Working      WorkingState `json:"isWorking"`
	ResponseTime int64        `json:"responseTime,omitempty"` // milliseconds
	Testing      bool         `json:"isTesting,omitempty"`    // transient, never persisted
}

// Logo returns the effective logo URL, preferring TvgLogo over ChannelImg.
func (c Channel) Logo() string {
	if c.TvgLogo != "" {
		return c.TvgLogo
	}
	return c.ChannelImg
}

// DisplayTvgName returns the tvg-name attribute value, falling back to the
// channel name.
func (c Channel) DisplayTvgName() string {
	if c.TvgName != "" {
		return c.TvgName
	}
	return c.ChannelName
}

// Role distinguishes catalog administrators from playlist owners.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValid checks whether the role is one of the defined constants.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User owns a playlist code. Admins implicitly see the whole catalog;
// regular users carry an explicit channel membership list.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Code     string `json:"code"` // 6-char upper-case, unique across all users
}

// Playlist is a named, independently-coded channel selection owned by a user.
type Playlist struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Code   string `json:"code"` // unique within the playlist code space
	Public bool   `json:"isPublic"`
}
