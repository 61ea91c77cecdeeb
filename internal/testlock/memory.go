// SPDX-License-Identifier: MIT

package testlock

import (
	"context"
	"sync"
	"time"
)

// MemoryLock is the single-instance implementation: a mutex-guarded cell
// with TTL expiry. It is the authoritative lock when chandir runs as one
// process.
type MemoryLock struct {
	mu        sync.Mutex
	holder    string
	expiresAt time.Time
	ttl       time.Duration

	now func() time.Time // injectable clock for tests
}

// NewMemoryLock returns an in-process lock. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryLock(ttl time.Duration) *MemoryLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLock{ttl: ttl, now: time.Now}
}

// TryAcquire implements Lock.
func (l *MemoryLock) TryAcquire(_ context.Context, holder string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != "" && l.now().Before(l.expiresAt) {
		return false, nil
	}
	l.holder = holder
	l.expiresAt = l.now().Add(l.ttl)
	return true, nil
}

// Release implements Lock.
func (l *MemoryLock) Release(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != holder {
		return ErrNotHeld
	}
	l.holder = ""
	l.expiresAt = time.Time{}
	return nil
}

// Status implements Lock.
func (l *MemoryLock) Status(_ context.Context) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder == "" || !l.now().Before(l.expiresAt) {
		return Status{}, nil
	}
	return Status{Locked: true, Holder: l.holder}, nil
}
