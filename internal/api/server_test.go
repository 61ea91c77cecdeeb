// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chandir/chandir/internal/batch"
	"github.com/chandir/chandir/internal/store"
	"github.com/chandir/chandir/internal/testlock"
	"github.com/chandir/chandir/internal/types"
)

const testToken = "test-admin-token"

type probeFunc func(ctx context.Context, url string) types.TestResult

func (f probeFunc) Probe(ctx context.Context, url string) types.TestResult {
	return f(ctx, url)
}

// workingFor returns a prober stub that reports working for URLs
// containing any of the given markers.
func workingFor(markers ...string) probeFunc {
	return func(_ context.Context, url string) types.TestResult {
		for _, m := range markers {
			if strings.Contains(url, m) {
				ok := http.StatusOK
				return types.TestResult{Working: true, StatusCode: &ok, ResponseTimeMs: 5}
			}
		}
		bad := http.StatusNotFound
		return types.TestResult{Working: false, StatusCode: &bad, ResponseTimeMs: 5, ErrorReason: "HTTP 404"}
	}
}

type testEnv struct {
	store *store.Store
	lock  *testlock.MemoryLock
	srv   *Server
	mux   http.Handler
}

func newTestEnv(t *testing.T, p batch.Prober, cfg Config) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "chandir.db"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lock := testlock.NewMemoryLock(time.Minute)
	orch := batch.New(st, p, lock, batch.WithWorkers(2))

	srv := New(st, orch, cfg)
	return &testEnv{store: st, lock: lock, srv: srv, mux: srv.Router()}
}

func defaultConfig() Config {
	return Config{AdminToken: testToken, Version: "test"}
}

func (e *testEnv) do(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if admin {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func httptestRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, strings.NewReader(body))
}

func record(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedChannels(t *testing.T, channels ...types.Channel) {
	t.Helper()
	for _, ch := range channels {
		_, err := e.store.InsertChannel(t.Context(), ch)
		require.NoError(t, err)
	}
}

func ch(id, name, group, url string, order int) types.Channel {
	return types.Channel{
		ChannelID:    id,
		ChannelName:  name,
		ChannelGroup: group,
		ChannelURL:   url,
		Order:        order,
		Active:       true,
	}
}
