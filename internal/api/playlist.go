// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chandir/chandir/internal/code"
	"github.com/chandir/chandir/internal/log"
	"github.com/chandir/chandir/internal/metrics"
	"github.com/chandir/chandir/internal/playlist"
	"github.com/chandir/chandir/internal/store"
	"github.com/chandir/chandir/internal/types"
)

// resolveByCode looks up a playlist code in the user space first, then
// the playlist space. The two spaces are never cross-matched against the
// wrong lookup table; a code resolves in exactly one of them.
func (s *Server) resolveByCode(r *http.Request, c string) (name string, channels []types.Channel, err error) {
	ctx := r.Context()

	u, err := s.store.FindUserByCode(ctx, c)
	if err == nil {
		channels, err = s.store.FindChannelsForUser(ctx, u)
		return u.Username, channels, err
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}

	p, err := s.store.FindPlaylistByCode(ctx, c)
	if err != nil {
		return "", nil, err
	}
	channels, err = s.store.FindChannelsForPlaylist(ctx, p.ID)
	return p.Name, channels, err
}

// handlePlaylistM3U serves GET /playlist/{code}.m3u. Unknown or malformed
// codes yield a parse-safe M3U error body so players never see an
// unexpected shape.
func (s *Server) handlePlaylistM3U(w http.ResponseWriter, r *http.Request) {
	c := code.Normalize(chi.URLParam(r, "code"))
	logger := log.WithComponentFromContext(r.Context(), "playlist")

	if !code.Valid(c) {
		metrics.IncPlaylistServed("m3u", "invalid_code")
		writeM3UError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	name, channels, err := s.resolveByCode(r, c)
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.IncPlaylistServed("m3u", "not_found")
		writeM3UError(w, http.StatusNotFound, "Playlist not found")
		return
	case err != nil:
		logger.Error().Err(err).Msg("playlist lookup failed")
		metrics.IncPlaylistServed("m3u", "error")
		writeM3UError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", playlist.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c+".m3u"))
	if err := playlist.WriteM3U(w, channels, name); err != nil {
		logger.Error().Err(err).Msg("playlist serialization failed")
		metrics.IncPlaylistServed("m3u", "error")
		return
	}
	metrics.IncPlaylistServed("m3u", "ok")
}

// handlePlaylistJSON serves GET /playlist/{code}.json for app consumption.
func (s *Server) handlePlaylistJSON(w http.ResponseWriter, r *http.Request) {
	c := code.Normalize(chi.URLParam(r, "code"))

	if !code.Valid(c) {
		metrics.IncPlaylistServed("json", "invalid_code")
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	name, channels, err := s.resolveByCode(r, c)
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.IncPlaylistServed("json", "not_found")
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "playlist")
		logger.Error().Err(err).Msg("playlist lookup failed")
		metrics.IncPlaylistServed("json", "error")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	metrics.IncPlaylistServed("json", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"channels": channels,
	})
}

func writeM3UError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", playlist.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(playlist.ErrorBody(reason)))
}
