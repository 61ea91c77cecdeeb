// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chandir/chandir/internal/catalog"
	"github.com/chandir/chandir/internal/code"
	"github.com/chandir/chandir/internal/log"
	"github.com/chandir/chandir/internal/store"
	"github.com/chandir/chandir/internal/types"
)

const maxBodyBytes = 10 << 20 // import payloads can carry full catalogs

// createCodeRetries bounds retries when an insert loses the generation
// race on the unique code index.
const createCodeRetries = 3

type createUserRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     types.Role `json:"role"`
	// ChannelIds optionally seeds the membership list for non-admins.
	ChannelIds []string `json:"channelIds"`
}

// handleCreateUser creates a user with a freshly generated playlist code.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeFromErr(w, err)
		return
	}
	if req.Username == "" {
		writeFromErr(w, fmt.Errorf("%w: username is required", ErrValidation))
		return
	}

	// Admins see the whole catalog; a membership list only applies to
	// regular users.
	var membership []string
	if req.Role != types.RoleAdmin {
		membership = req.ChannelIds
	}

	ctx := r.Context()
	var u types.User
	err := s.withFreshCode(ctx, s.store.UserCodeSpace(), func(c string) error {
		var err error
		u, err = s.store.CreateUser(ctx, types.User{
			Username: req.Username,
			Email:    req.Email,
			Role:     req.Role,
			Code:     c,
		}, membership...)
		return err
	})
	if err != nil {
		writeCreateErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": u})
}

type createPlaylistRequest struct {
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	Public     bool     `json:"isPublic"`
	ChannelIds []string `json:"channelIds"`
}

// handleCreatePlaylist creates a named playlist with its own code,
// independent of the owner's user code.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeBody(r, &req); err != nil {
		writeFromErr(w, err)
		return
	}
	if req.Name == "" {
		writeFromErr(w, fmt.Errorf("%w: name is required", ErrValidation))
		return
	}

	ctx := r.Context()
	if req.UserID != "" {
		if _, err := s.store.FindUserByID(ctx, req.UserID); err != nil {
			writeCreateErr(w, err)
			return
		}
	}

	var p types.Playlist
	err := s.withFreshCode(ctx, s.store.PlaylistCodeSpace(), func(c string) error {
		var err error
		p, err = s.store.CreatePlaylist(ctx, types.Playlist{
			UserID: req.UserID,
			Name:   req.Name,
			Public: req.Public,
			Code:   c,
		}, req.ChannelIds...)
		return err
	})
	if err != nil {
		writeCreateErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "playlist": p})
}

// withFreshCode generates a unique code and runs insert with it. A conflict
// on the code column means the generation race was lost after the existence
// check; the whole generate-insert cycle is retried. Conflicts on any other
// column (duplicate username or email) propagate to the caller.
func (s *Server) withFreshCode(ctx context.Context, space code.Space, insert func(c string) error) error {
	var lastErr error
	for range createCodeRetries {
		c, err := s.codes.Generate(ctx, space)
		if err != nil {
			return err
		}
		err = insert(c)
		if err == nil {
			return nil
		}
		if !store.IsConflictOn(err, ".code") {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("code generation race lost %d times: %w", createCodeRetries, lastErr)
}

type batchTestRequest struct {
	// nil means the whole active catalog.
	ChannelIds *[]string `json:"channelIds"`
}

// handleBatchTest runs a connectivity test over the requested channel set.
func (s *Server) handleBatchTest(w http.ResponseWriter, r *http.Request) {
	var req batchTestRequest
	if err := decodeBody(r, &req); err != nil {
		writeFromErr(w, err)
		return
	}

	ctx := r.Context()
	var ids []string
	if req.ChannelIds != nil {
		ids = *req.ChannelIds
	} else {
		channels, err := s.store.FindActiveChannels(ctx)
		if err != nil {
			writeFromErr(w, err)
			return
		}
		for _, ch := range channels {
			ids = append(ids, ch.ChannelID)
		}
	}

	summary, err := s.orch.RunBatch(ctx, ids)
	if err != nil {
		writeFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSingleTest probes one channel under the shared advisory lock.
func (s *Server) handleSingleTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.orch.RunSingle(r.Context(), id)
	if err != nil {
		writeFromErr(w, err)
		return
	}
	if res.NotFound {
		writeError(w, http.StatusNotFound, "channel not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTestStatus reports the advisory lock state.
func (s *Server) handleTestStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.orch.Status(r.Context())
	if err != nil {
		writeFromErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isLocked": st.Locked})
}

// handleImport ingests a channel catalog. Payload field aliases are
// normalized before the store sees them. ?replace=true swaps the whole
// catalog instead of upserting.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	channels, err := catalog.Decode(body)
	if err != nil {
		writeFromErr(w, fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}

	ctx := r.Context()
	if r.URL.Query().Get("replace") == "true" {
		err = s.store.ReplaceCatalog(ctx, channels)
	} else {
		err = s.store.ImportChannels(ctx, channels)
	}
	if err != nil {
		writeFromErr(w, err)
		return
	}

	logger := log.WithComponentFromContext(ctx, "import")
	logger.Info().
		Int("channels", len(channels)).
		Msg("catalog imported")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"imported": len(channels),
	})
}

// handleStats serves the dashboard aggregate counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, working, notWorking, err := s.store.CountChannels(ctx)
	if err != nil {
		writeFromErr(w, err)
		return
	}
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		writeFromErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"channels": map[string]int{
			"total":      total,
			"working":    working,
			"notWorking": notWorking,
			"untested":   total - working - notWorking,
		},
	})
}

// decodeBody parses a JSON request body, mapping malformed input to a
// validation error. A non-array channelIds value fails here.
func decodeBody(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid request body: %v", ErrValidation, err)
	}
	return nil
}
