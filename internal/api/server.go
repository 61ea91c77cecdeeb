// SPDX-License-Identifier: MIT

// Package api exposes the public playlist endpoints and the admin API
// over a chi router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chandir/chandir/internal/api/middleware"
	"github.com/chandir/chandir/internal/batch"
	"github.com/chandir/chandir/internal/code"
	"github.com/chandir/chandir/internal/health"
	"github.com/chandir/chandir/internal/store"
)

// Config carries the handler-level settings of the HTTP surface.
type Config struct {
	// AdminToken guards /api routes. Empty disables the admin API.
	AdminToken string
	// PlaylistRateLimit caps playlist fetches per minute per IP.
	// Zero disables the limiter.
	PlaylistRateLimit int
	Version           string
}

// Server bundles the handler dependencies.
type Server struct {
	store  *store.Store
	orch   *batch.Orchestrator
	codes  *code.Generator
	health *health.Manager
	cfg    Config
}

// New assembles a Server. A DB ping checker is registered on the health
// manager so /readyz reflects store availability.
func New(st *store.Store, orch *batch.Orchestrator, cfg Config) *Server {
	hm := health.NewManager(cfg.Version)
	hm.Register(health.Checker{
		Name:  "database",
		Check: func(ctx context.Context) error { return st.Ping() },
	})
	return &Server{
		store:  st,
		orch:   orch,
		codes:  code.NewGenerator(),
		health: hm,
		cfg:    cfg,
	}
}

// Router builds the full route tree with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics())

	// Public playlist endpoints, rate limited per IP.
	r.Group(func(r chi.Router) {
		if s.cfg.PlaylistRateLimit > 0 {
			r.Use(middleware.RateLimit(s.cfg.PlaylistRateLimit, time.Minute))
		}
		r.Get("/playlist/{code}.m3u", s.handlePlaylistM3U)
		r.Get("/playlist/{code}.json", s.handlePlaylistJSON)
	})

	// Admin API behind static bearer token.
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/users", s.handleCreateUser)
		r.Post("/playlists", s.handleCreatePlaylist)
		r.Post("/channels/test", s.handleBatchTest)
		r.Post("/channels/{id}/test", s.handleSingleTest)
		r.Get("/test/status", s.handleTestStatus)
		r.Post("/channels/import", s.handleImport)
		r.Get("/stats", s.handleStats)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Health())
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := s.health.Ready(r.Context())
	status := http.StatusOK
	if resp.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
