package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the instant a DeterministicClock starts at.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock provides a thread-safe, manually advanced wall clock for
// tests. Audit timestamps written by the engine become predictable, so
// golden traces stay byte-identical across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewDeterministicClock creates a clock frozen at DefaultEpoch.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{now: DefaultEpoch}
}

// NewDeterministicClockAt creates a clock frozen at t.
func NewDeterministicClockAt(t time.Time) *DeterministicClock {
	return &DeterministicClock{now: t}
}

// Now returns the current frozen instant.
//
// Implements engine.Clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset moves the clock back to DefaultEpoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = DefaultEpoch
}
