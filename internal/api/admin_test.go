// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandir/chandir/internal/batch"
	"github.com/chandir/chandir/internal/types"
)

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/test/status", "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := httptestRequest(http.MethodGet, "/api/test/status", "")
		req.Header.Set("Authorization", "Bearer wrong")
		rec := record(env, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/test/status", "", true)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	cfg := defaultConfig()
	cfg.AdminToken = ""
	env := newTestEnv(t, workingFor(), cfg)

	rec := env.do(t, http.MethodGet, "/api/test/status", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBatchTestEndpoint(t *testing.T) {
	env := newTestEnv(t, workingFor("orf1"), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("bbc1", "BBC One", "UK", "http://example.com/bbc1.m3u8", 1),
	)

	rec := env.do(t, http.MethodPost, "/api/channels/test",
		`{"channelIds": ["orf1", "bbc1", "ghost"]}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary batch.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Tested)
	assert.Equal(t, 1, summary.Working)
	assert.Equal(t, 1, summary.NotWorking)
	require.Len(t, summary.Results, 3)

	byID := map[string]types.ChannelResult{}
	for _, res := range summary.Results {
		byID[res.ChannelID] = res
	}
	assert.True(t, byID["orf1"].Working)
	assert.False(t, byID["bbc1"].Working)
	assert.True(t, byID["ghost"].NotFound)

	// status persisted
	stored, err := env.store.FindChannelByID(t.Context(), "orf1")
	require.NoError(t, err)
	assert.Equal(t, types.StateWorking, stored.Working)
	assert.NotNil(t, stored.LastTested)
}

func TestBatchTestAllChannelsByDefault(t *testing.T) {
	env := newTestEnv(t, workingFor("orf"), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("orf2", "ORF 2", "Austria", "http://example.com/orf2.m3u8", 2),
	)

	rec := env.do(t, http.MethodPost, "/api/channels/test", `{}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary batch.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Tested)
	assert.Equal(t, 2, summary.Working)
}

func TestBatchTestRejectsNonArrayIds(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodPost, "/api/channels/test",
		`{"channelIds": "orf1"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
}

func TestSingleTestEndpoint(t *testing.T) {
	env := newTestEnv(t, workingFor("orf1"), defaultConfig())
	env.seedChannels(t, ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1))

	rec := env.do(t, http.MethodPost, "/api/channels/orf1/test", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var res types.ChannelResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "orf1", res.ChannelID)
	assert.True(t, res.Working)

	rec = env.do(t, http.MethodPost, "/api/channels/ghost/test", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTestStatusReflectsLock(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodGet, "/api/test/status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isLocked": false}`, rec.Body.String())

	acquired, err := env.lock.TryAcquire(t.Context(), "other-holder")
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = env.lock.Release(t.Context(), "other-holder") }()

	rec = env.do(t, http.MethodGet, "/api/test/status", "", true)
	assert.JSONEq(t, `{"isLocked": true}`, rec.Body.String())

	// test runs are rejected while the lock is held elsewhere
	rec = env.do(t, http.MethodPost, "/api/channels/test", `{"channelIds": []}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestImportEndpoint(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	payload := `[
		{"id": "orf1", "name": "ORF 1", "group": "Austria", "url": "http://example.com/orf1.m3u8"},
		{"channelId": "bbc1", "channelName": "BBC One", "channelGroup": "UK", "channelUrl": "http://example.com/bbc1.m3u8", "logo": "http://example.com/bbc1.png"}
	]`
	rec := env.do(t, http.MethodPost, "/api/channels/import", payload, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool `json:"success"`
		Imported int  `json:"imported"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Imported)

	stored, err := env.store.FindChannelByID(t.Context(), "bbc1")
	require.NoError(t, err)
	assert.Equal(t, "BBC One", stored.ChannelName)
	assert.Equal(t, "http://example.com/bbc1.png", stored.TvgLogo)
}

func TestImportRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodPost, "/api/channels/import",
		`[{"name": "no id or url"}]`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, workingFor("orf1"), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("bbc1", "BBC One", "UK", "http://example.com/bbc1.m3u8", 1),
	)
	rec := env.do(t, http.MethodPost, "/api/channels/test", `{}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stats", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Users    int            `json:"users"`
		Channels map[string]int `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Users)
	assert.Equal(t, 2, resp.Channels["total"])
	assert.Equal(t, 1, resp.Channels["working"])
	assert.Equal(t, 1, resp.Channels["notWorking"])
	assert.Equal(t, 0, resp.Channels["untested"])
}

func TestCreateUserGeneratesCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodPost, "/api/users",
		`{"username": "alice", "role": "admin"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool       `json:"success"`
		User    types.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.User.Code, 6)
	assert.Equal(t, types.RoleAdmin, resp.User.Role)

	// a second user gets a distinct code
	rec = env.do(t, http.MethodPost, "/api/users", `{"username": "bob"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second struct {
		User types.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.NotEqual(t, resp.User.Code, second.User.Code)

	rec = env.do(t, http.MethodPost, "/api/users", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUserWithChannels(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())
	env.seedChannels(t,
		ch("orf1", "ORF 1", "Austria", "http://example.com/orf1.m3u8", 1),
		ch("bbc1", "BBC One", "UK", "http://example.com/bbc1.m3u8", 1),
	)

	rec := env.do(t, http.MethodPost, "/api/users",
		`{"username": "carol", "channelIds": ["orf1"]}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User types.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	m3u := env.do(t, http.MethodGet, "/playlist/"+resp.User.Code+".m3u", "", false)
	require.Equal(t, http.StatusOK, m3u.Code)
	assert.Contains(t, m3u.Body.String(), "http://example.com/orf1.m3u8")
	assert.NotContains(t, m3u.Body.String(), "http://example.com/bbc1.m3u8")

	// Unknown channel ids reject the request without leaving a half-created
	// user behind, so the same username can be retried.
	rec = env.do(t, http.MethodPost, "/api/users",
		`{"username": "dave", "channelIds": ["ghost"]}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users",
		`{"username": "dave", "channelIds": ["bbc1"]}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateUserDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodPost, "/api/users",
		`{"username": "erin", "email": "e@example.com"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users",
		`{"username": "frank", "email": "e@example.com"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Users without an email never collide with each other.
	rec = env.do(t, http.MethodPost, "/api/users", `{"username": "gus"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/users", `{"username": "hana"}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreatePlaylistGeneratesCode(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodPost, "/api/playlists",
		`{"name": "Sports"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Playlist types.Playlist `json:"playlist"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Playlist.Code, 6)
	assert.Equal(t, "Sports", resp.Playlist.Name)

	// the new code serves a playlist right away
	m3u := env.do(t, http.MethodGet, "/playlist/"+resp.Playlist.Code+".m3u", "", false)
	assert.Equal(t, http.StatusOK, m3u.Code)
	assert.Contains(t, m3u.Body.String(), "#PLAYLIST:Sports")

	// An unknown owner is the caller's mistake, not a missing resource.
	rec = env.do(t, http.MethodPost, "/api/playlists",
		`{"name": "Orphan", "userId": "no-such-user"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, workingFor(), defaultConfig())

	rec := env.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}
