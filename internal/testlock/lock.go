// SPDX-License-Identifier: MIT

// Package testlock provides the advisory mutual-exclusion lock for channel
// test runs.
//
// The lock is cooperative: well-behaved callers acquire it before starting a
// batch or single-channel test and release it when done. A TTL clears the
// lock if its holder crashed, so a stuck flag can never block testing
// forever.
package testlock

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a crashed holder can keep the lock.
const DefaultTTL = 10 * time.Minute

// ErrNotHeld is returned when releasing a lock the caller does not hold.
var ErrNotHeld = errors.New("testlock: lock not held by this holder")

// Status describes the observable lock state.
type Status struct {
	Locked bool   `json:"isLocked"`
	Holder string `json:"holder,omitempty"`
}

// Lock is the advisory test lock. Implementations must guarantee that two
// callers never both believe they hold it.
type Lock interface {
	// TryAcquire attempts to take the lock for holder. It returns false
	// without blocking when another holder is active.
	TryAcquire(ctx context.Context, holder string) (bool, error)

	// Release frees the lock if holder still owns it.
	Release(ctx context.Context, holder string) error

	// Status reports whether the lock is currently held and by whom.
	Status(ctx context.Context) (Status, error)
}
