// SPDX-License-Identifier: MIT

package probe

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeClassificationBoundary(t *testing.T) {
	tests := []struct {
		status      int
		wantWorking bool
	}{
		{200, true},
		{204, true},
		{399, true},
		{400, false},
		{404, false},
		{500, false},
	}

	for _, tc := range tests {
		status := tc.status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		p := New()
		res := p.Probe(t.Context(), srv.URL)
		srv.Close()

		require.NotNil(t, res.StatusCode, "status %d", status)
		assert.Equal(t, status, *res.StatusCode)
		assert.Equal(t, tc.wantWorking, res.Working, "status %d", status)
		if !tc.wantWorking {
			assert.NotEmpty(t, res.ErrorReason, "status %d", status)
		}
	}
}

func TestProbeHeadOnly(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	defer srv.Close()

	New().Probe(t.Context(), srv.URL)
	assert.Equal(t, http.MethodHead, method)
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := New()
	start := time.Now()
	res := p.ProbeWithTimeout(t.Context(), srv.URL, 200*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Working)
	assert.Equal(t, "timeout", res.ErrorReason)
	assert.GreaterOrEqual(t, res.ResponseTimeMs, int64(150))
	assert.LessOrEqual(t, res.ResponseTimeMs, int64(1000))
	assert.Less(t, elapsed, 2*time.Second, "probe must not hang past its budget")
}

func TestProbeTimeoutReportsTimeSpent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	// The client's own hard timeout fires long before the generous per-call
	// budget; the result must reflect the time actually spent, not the budget.
	p := New(WithClient(&http.Client{Timeout: 50 * time.Millisecond}))
	res := p.ProbeWithTimeout(t.Context(), srv.URL, 10*time.Second)

	assert.False(t, res.Working)
	assert.Equal(t, "timeout", res.ErrorReason)
	assert.Less(t, res.ResponseTimeMs, int64(5000))
}

func TestProbeMalformedURL(t *testing.T) {
	p := New()
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "http://"} {
		res := p.Probe(t.Context(), raw)
		assert.False(t, res.Working, "url %q", raw)
		assert.Nil(t, res.StatusCode, "url %q", raw)
		assert.NotEmpty(t, res.ErrorReason, "url %q", raw)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	// Bind-then-close guarantees nothing is listening on the port.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := New().Probe(t.Context(), url)
	assert.False(t, res.Working)
	assert.Nil(t, res.StatusCode)
	assert.NotEmpty(t, res.ErrorReason)
}

func TestProbeFollowsBoundedRedirects(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	res := New().Probe(t.Context(), srv.URL)
	assert.True(t, res.Working)
	require.NotNil(t, res.StatusCode)
	assert.Equal(t, http.StatusOK, *res.StatusCode)
}

func TestProbeRedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	res := New().Probe(t.Context(), srv.URL)
	assert.False(t, res.Working)
}

func TestProbeMeasuresResponseTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
	}))
	defer srv.Close()

	res := New().Probe(t.Context(), srv.URL)
	assert.True(t, res.Working)
	assert.GreaterOrEqual(t, res.ResponseTimeMs, int64(30))
}
