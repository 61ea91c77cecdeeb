// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for chandir.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Probe metrics
	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chandir_probes_total",
		Help: "Connectivity probes by outcome",
	}, []string{"outcome"}) // outcome=working|not_working|timeout|invalid_url

	probeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chandir_probe_duration_seconds",
		Help:    "Connectivity probe round-trip latencies in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Batch metrics
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chandir_batch_runs_total",
		Help: "Batch test runs by outcome",
	}, []string{"outcome"}) // outcome=completed|cancelled|rejected

	batchChannelsTested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chandir_batch_channels_tested_total",
		Help: "Channels attempted across all batch runs",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chandir_batch_duration_seconds",
		Help:    "Wall-clock duration of batch test runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// Code generator metrics
	codeCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chandir_code_collisions_total",
		Help: "Playlist code draws discarded due to an existing code",
	})

	// Playlist delivery metrics
	playlistsServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chandir_playlists_served_total",
		Help: "Playlist fetches by format and outcome",
	}, []string{"format", "outcome"}) // format=m3u|json, outcome=ok|not_found|invalid_code

	// Store metrics
	statusWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chandir_status_write_errors_total",
		Help: "Failed per-channel status persistence attempts",
	})
)

// IncProbe records a probe outcome and its duration.
func IncProbe(outcome string, d time.Duration) {
	probesTotal.WithLabelValues(outcome).Inc()
	probeDuration.Observe(d.Seconds())
}

// IncBatchRun records a finished (or rejected) batch run.
func IncBatchRun(outcome string, d time.Duration, tested int) {
	batchRunsTotal.WithLabelValues(outcome).Inc()
	if tested > 0 {
		batchChannelsTested.Add(float64(tested))
	}
	if d > 0 {
		batchDuration.Observe(d.Seconds())
	}
}

// IncCodeCollision records a discarded code draw.
func IncCodeCollision() {
	codeCollisionsTotal.Inc()
}

// IncPlaylistServed records a playlist fetch.
func IncPlaylistServed(format, outcome string) {
	playlistsServedTotal.WithLabelValues(format, outcome).Inc()
}

// IncStatusWriteError records a failed channel status update.
func IncStatusWriteError() {
	statusWriteErrors.Inc()
}
