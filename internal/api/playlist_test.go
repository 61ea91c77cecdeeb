// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandir/chandir/internal/playlist"
	"github.com/chandir/chandir/internal/types"
)

func TestPlaylistM3UByUserCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("bbc1", "BBC One", "UK", "http://example.com/bbc1.m3u8", 1),
	)
	_, err := env.store.CreateUser(t.Context(), types.User{
		Username: "alice",
		Role:     types.RoleAdmin,
		Code:     "ABC123",
	})
	require.NoError(t, err)

	// codes resolve case-insensitively
	rec := env.do(t, http.MethodGet, "/playlist/abc123.m3u", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, playlist.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ABC123.m3u"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, "#EXTM3U\n")
	assert.Contains(t, body, "#PLAYLIST:alice\n")
	assert.Contains(t, body, "http://example.com/orf1.m3u8\n")
	assert.Contains(t, body, "http://example.com/bbc1.m3u8\n")
}

func TestPlaylistM3UUnknownCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodGet, "/playlist/ZZZZZZ.m3u", "", false)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, playlist.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "#EXTM3U\n#ERROR:Playlist not found", rec.Body.String())
}

func TestPlaylistM3UMalformedCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	for _, raw := range []string{"AB", "ABC1234", "AB!123"} {
		rec := env.do(t, http.MethodGet, "/playlist/"+raw+".m3u", "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code, "code %q", raw)
		assert.Contains(t, rec.Body.String(), "#ERROR:Playlist not found", "code %q", raw)
	}
}

func TestPlaylistJSONByPlaylistCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("bbc1", "BBC One", "UK", "http://example.com/bbc1.m3u8", 1),
	)

	_, err := env.store.CreatePlaylist(t.Context(), types.Playlist{
		Name: "Sports",
		Code: "SPORT1",
	}, "orf1")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/playlist/sport1.json", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Name     string          `json:"name"`
		Channels []types.Channel `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sports", resp.Name)
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "orf1", resp.Channels[0].ChannelID)
}

func TestPlaylistJSONUnknownCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodGet, "/playlist/NOPE99.json", "", false)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Playlist not found", resp["error"])
}

func TestPlaylistRateLimit(t *testing.T) {
	cfg := defaultConfig()
	cfg.PlaylistRateLimit = 2
	env := newTestEnv(t, workingFor(), cfg)

	for range 2 {
		rec := env.do(t, http.MethodGet, "/playlist/ZZZZZZ.m3u", "", false)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/playlist/ZZZZZZ.m3u", "", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
