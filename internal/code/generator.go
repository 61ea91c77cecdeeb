// SPDX-License-Identifier: MIT

// Package code generates short, human-typeable playlist codes.
package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/chandir/chandir/internal/metrics"
)

// Alphabet is the code symbol set: 36 symbols, 6 positions, ~2.2 billion codes.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the fixed code length.
const Length = 6

// DefaultMaxAttempts bounds the collision-retry loop. At realistic scale a
// collision is astronomically unlikely; exhausting the budget indicates a
// corrupted or unbounded existence query.
const DefaultMaxAttempts = 50

// ErrCodeSpaceExhausted is returned when the retry budget is spent without
// finding a free code.
var ErrCodeSpaceExhausted = errors.New("code space exhausted: retry budget spent")

// Space answers existence queries for one code namespace (users or playlists).
// The two namespaces are independently unique and must never be cross-matched.
type Space interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// Generator draws random codes and verifies them against a Space.
//
// The generator only checks existence, it does not reserve: the storage
// layer's unique index is the final race-breaker between two concurrent
// generators proposing the same code.
type Generator struct {
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides the collision-retry budget.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator returns a Generator with the default retry budget.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{maxAttempts: DefaultMaxAttempts}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns a code that did not exist in space at check time.
// A collision redraws the entire code, never single characters.
func (g *Generator) Generate(ctx context.Context, space Space) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := draw()
		if err != nil {
			return "", fmt.Errorf("code: draw failed: %w", err)
		}

		exists, err := space.ExistsByCode(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("code: existence check failed: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		metrics.IncCodeCollision()
	}
	return "", ErrCodeSpaceExhausted
}

// draw produces 6 independent uniformly-random symbols from Alphabet.
// Bytes >= 252 are rejected to keep the distribution uniform (252 = 7*36).
func draw() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	buf := make([]byte, Length)
	for b.Len() < Length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if c >= 252 {
				continue
			}
			b.WriteByte(Alphabet[int(c)%len(Alphabet)])
			if b.Len() == Length {
				break
			}
		}
	}
	return b.String(), nil
}

// Normalize upper-cases a code for comparison and storage. Codes are
// case-insensitive on the wire but stored upper-cased.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is exactly 6 symbols from the alphabet after
// normalization.
func Valid(code string) bool {
	code = Normalize(code)
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
