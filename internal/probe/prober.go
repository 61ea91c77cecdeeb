// SPDX-License-Identifier: MIT

// Package probe performs lightweight reachability checks against stream URLs.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chandir/chandir/internal/metrics"
	"github.com/chandir/chandir/internal/types"
)

const (
	// DefaultTimeout bounds a single probe end to end.
	DefaultTimeout = 10 * time.Second

	// maxRedirects caps redirect chains so a probe can never loop.
	maxRedirects = 5

	// connectAllowance covers connection setup beyond the caller's budget.
	connectAllowance = 3 * time.Second
)

// Prober issues metadata-only requests against stream URLs and classifies
// the outcome. Reachability failures are results, not errors: Probe never
// returns an error for an unreachable or misbehaving stream.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout overrides the default per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClient substitutes the HTTP client, primarily for tests.
func WithClient(c *http.Client) Option {
	return func(p *Prober) {
		if c != nil {
			p.client = c
		}
	}
}

// New returns a Prober with a hardened HTTP client.
func New(opts ...Option) *Prober {
	p := &Prober{timeout: DefaultTimeout}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = newClient(p.timeout)
	}
	return p
}

func newClient(timeout time.Duration) *http.Client {
	dialTimeout := connectAllowance
	if timeout < dialTimeout {
		dialTimeout = timeout
	}
	return &http.Client{
		// The per-request context carries the real deadline; the client
		// timeout is a hard upper bound including connection setup.
		Timeout: timeout + connectAllowance,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
			DisableKeepAlives:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     5 * time.Second,
			TLSHandshakeTimeout: dialTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// Probe checks url with the prober's default timeout.
func (p *Prober) Probe(ctx context.Context, rawURL string) types.TestResult {
	return p.ProbeWithTimeout(ctx, rawURL, p.timeout)
}

// ProbeWithTimeout checks url, reporting a classified result within timeout.
// A timeout reports responseTimeMs equal to the budget actually spent.
func (p *Prober) ProbeWithTimeout(ctx context.Context, rawURL string, timeout time.Duration) types.TestResult {
	if timeout <= 0 {
		timeout = p.timeout
	}

	if reason, ok := validateURL(rawURL); !ok {
		metrics.IncProbe("invalid_url", 0)
		return types.TestResult{
			Working:     false,
			ErrorReason: reason,
			Message:     "invalid stream URL",
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		metrics.IncProbe("invalid_url", 0)
		return types.TestResult{
			Working:     false,
			ErrorReason: err.Error(),
			Message:     "invalid stream URL",
		}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if timedOut(reqCtx, err) {
			// The client carries its own hard timeout which can fire before
			// the per-call deadline; never report more time than was spent.
			spent := timeout
			if elapsed < spent {
				spent = elapsed
			}
			metrics.IncProbe("timeout", elapsed)
			return types.TestResult{
				Working:        false,
				ResponseTimeMs: spent.Milliseconds(),
				ErrorReason:    "timeout",
				Message:        fmt.Sprintf("no response within %s", spent.Round(time.Millisecond)),
			}
		}
		metrics.IncProbe("not_working", elapsed)
		return types.TestResult{
			Working:        false,
			ResponseTimeMs: elapsed.Milliseconds(),
			ErrorReason:    rootCause(err),
			Message:        "connection failed",
		}
	}
	_ = resp.Body.Close()

	status := resp.StatusCode
	result := types.TestResult{
		StatusCode:     &status,
		ResponseTimeMs: elapsed.Milliseconds(),
	}
	if status >= 200 && status < 400 {
		result.Working = true
		result.Message = fmt.Sprintf("stream reachable (%d)", status)
		metrics.IncProbe("working", elapsed)
	} else {
		result.ErrorReason = fmt.Sprintf("unexpected status %d", status)
		result.Message = http.StatusText(status)
		metrics.IncProbe("not_working", elapsed)
	}
	return result
}

// validateURL rejects malformed stream URLs before any network access.
func validateURL(rawURL string) (reason string, ok bool) {
	if strings.TrimSpace(rawURL) == "" {
		return "empty URL", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err.Error(), false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("unsupported scheme %q", u.Scheme), false
	}
	if u.Host == "" {
		return "missing host", false
	}
	return "", true
}

func timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// rootCause unwraps url.Error so logs and API payloads carry the underlying
// dial or TLS failure instead of the full request wrapper.
func rootCause(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}
