// SPDX-License-Identifier: MIT

// Package batch orchestrates connectivity test runs over sets of channels.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chandir/chandir/internal/log"
	"github.com/chandir/chandir/internal/metrics"
	"github.com/chandir/chandir/internal/store"
	"github.com/chandir/chandir/internal/testlock"
	"github.com/chandir/chandir/internal/types"
)

// DefaultWorkers bounds concurrent in-flight probes per batch.
const DefaultWorkers = 8

// ErrTestInProgress is returned when another test run holds the advisory lock.
var ErrTestInProgress = errors.New("batch: a test run is already in progress")

// ChannelStore is the persistence surface the orchestrator consumes.
type ChannelStore interface {
	FindChannelByID(ctx context.Context, channelID string) (types.Channel, error)
	UpdateChannelStatus(ctx context.Context, channelID string, lastTested time.Time, working types.WorkingState, responseTimeMs int64) error
}

// Prober issues a single connectivity probe.
type Prober interface {
	Probe(ctx context.Context, url string) types.TestResult
}

// Summary aggregates a batch run. Tested counts every attempted id including
// not-found entries; Working and NotWorking count only definitive probe
// outcomes.
type Summary struct {
	Tested     int                   `json:"tested"`
	Working    int                   `json:"working"`
	NotWorking int                   `json:"notWorking"`
	Results    []types.ChannelResult `json:"results"`
}

// Orchestrator runs probes over channel sets under the advisory test lock,
// with a bounded worker pool and per-channel atomic status persistence.
type Orchestrator struct {
	store   ChannelStore
	prober  Prober
	lock    testlock.Lock
	workers int

	now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers overrides the worker-pool size, clamped to [1, 32].
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		if n > 32 {
			n = 32
		}
		o.workers = n
	}
}

// New returns an Orchestrator guarding test runs with lock.
func New(st ChannelStore, p Prober, lock testlock.Lock, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		prober:  p,
		lock:    lock,
		workers: DefaultWorkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status reports the advisory lock state for the status query endpoint.
func (o *Orchestrator) Status(ctx context.Context) (testlock.Status, error) {
	return o.lock.Status(ctx)
}

// RunSingle probes one channel and persists its status. It takes the same
// advisory lock as a batch, so a single test never overlaps a running scan.
func (o *Orchestrator) RunSingle(ctx context.Context, channelID string) (types.ChannelResult, error) {
	holder := "single-" + uuid.New().String()
	ok, err := o.lock.TryAcquire(ctx, holder)
	if err != nil {
		return types.ChannelResult{}, fmt.Errorf("batch: lock acquire: %w", err)
	}
	if !ok {
		return types.ChannelResult{}, ErrTestInProgress
	}
	defer o.release(holder)

	res, _ := o.testOne(ctx, channelID)
	return res, nil
}

// RunBatch probes every channel in channelIDs with bounded concurrency.
// A missing id yields a not-found entry and never aborts the batch; a failed
// status write marks that entry and the batch continues. Cancelling ctx stops
// dispatching new probes while in-flight ones complete and persist.
func (o *Orchestrator) RunBatch(ctx context.Context, channelIDs []string) (*Summary, error) {
	batchID := uuid.New().String()
	holder := "batch-" + batchID
	ok, err := o.lock.TryAcquire(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("batch: lock acquire: %w", err)
	}
	if !ok {
		metrics.IncBatchRun("rejected", 0, 0)
		return nil, ErrTestInProgress
	}
	defer o.release(holder)

	ctx = log.ContextWithBatchID(ctx, batchID)
	logger := log.WithComponentFromContext(ctx, "batch")
	logger.Info().
		Int("channels", len(channelIDs)).
		Int("workers", o.workers).
		Msg("batch test started")

	start := o.now()
	sem := make(chan struct{}, o.workers)
	results := make(chan itemOutcome, len(channelIDs))
	var wg sync.WaitGroup

	cancelled := false
dispatch:
	for _, id := range channelIDs {
		// Acquire a worker slot before spawning so cancellation stops
		// dispatch immediately; in-flight probes drain below.
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case sem <- struct{}{}:
		}

		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res, definitive := o.testOne(ctx, id)
			results <- itemOutcome{res: res, definitive: definitive}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := &Summary{}
	for out := range results {
		summary.Tested++
		if out.definitive {
			if out.res.Working {
				summary.Working++
			} else {
				summary.NotWorking++
			}
		}
		summary.Results = append(summary.Results, out.res)
	}

	elapsed := time.Since(start)
	outcome := "completed"
	if cancelled {
		outcome = "cancelled"
	}
	metrics.IncBatchRun(outcome, elapsed, summary.Tested)
	logger.Info().
		Str(log.FieldEvent, "batch."+outcome).
		Int("tested", summary.Tested).
		Int("working", summary.Working).
		Int("not_working", summary.NotWorking).
		Dur("duration", elapsed).
		Msg("batch test finished")

	return summary, nil
}

// itemOutcome pairs a per-channel result with whether a probe actually ran:
// not-found and lookup-failure entries are counted as tested but contribute
// to neither the working nor the not-working tally.
type itemOutcome struct {
	res        types.ChannelResult
	definitive bool
}

// testOne looks up, probes and persists one channel. Persistence runs
// outside ctx cancellation: a result from an in-flight probe is always
// written, even if the batch was cancelled meanwhile.
func (o *Orchestrator) testOne(ctx context.Context, channelID string) (types.ChannelResult, bool) {
	logger := log.WithComponentFromContext(ctx, "batch")

	ch, err := o.store.FindChannelByID(ctx, channelID)
	if errors.Is(err, store.ErrNotFound) {
		return types.ChannelResult{
			ChannelID: channelID,
			NotFound:  true,
			TestResult: types.TestResult{
				ErrorReason: "channel not found",
			},
		}, false
	}
	if err != nil {
		logger.Error().Err(err).Str(log.FieldChannelID, channelID).Msg("channel lookup failed")
		return types.ChannelResult{
			ChannelID: channelID,
			TestResult: types.TestResult{
				ErrorReason: "lookup failed: " + err.Error(),
			},
		}, false
	}

	res := o.prober.Probe(ctx, ch.ChannelURL)

	// Persist with a fresh context so a cancelled batch still lands the
	// outcome of this in-flight probe (no torn writes, no lost results).
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	state := types.StateFromResult(res.Working)
	if err := o.store.UpdateChannelStatus(writeCtx, ch.ChannelID, o.now().UTC(), state, res.ResponseTimeMs); err != nil {
		metrics.IncStatusWriteError()
		logger.Error().Err(err).
			Str(log.FieldChannelID, ch.ChannelID).
			Msg("status write failed")
		res.Message = "probe finished but status write failed"
		if res.ErrorReason == "" {
			res.ErrorReason = "status write failed"
		}
	}

	logger.Debug().
		Str(log.FieldChannelID, ch.ChannelID).
		Bool(log.FieldWorking, res.Working).
		Int64(log.FieldResponseTime, res.ResponseTimeMs).
		Msg("channel tested")

	return types.ChannelResult{
		ChannelID:   ch.ChannelID,
		ChannelName: ch.ChannelName,
		TestResult:  res,
	}, true
}

func (o *Orchestrator) release(holder string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.lock.Release(ctx, holder); err != nil && !errors.Is(err, testlock.ErrNotHeld) {
		logger := log.WithComponent("batch")
		logger.Warn().Err(err).
			Str(log.FieldLockHolder, holder).
			Msg("lock release failed")
	}
}
