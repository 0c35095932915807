package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the wall time written into audit attributes such as
// createdon. Implemented by SystemClock (production) and
// testutil.DeterministicClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Generations is a monotonic logical counter for sort batches.
//
// Every captured batch is stamped with a strictly increasing generation so
// that a batch replaced by a later capture can be told apart from the
// current one without comparing contents.
//
// Thread-safety: Generations is safe for concurrent use (atomic operations).
type Generations struct {
	seq atomic.Int64
}

// NewGenerations creates a counter starting at 0.
func NewGenerations() *Generations {
	return &Generations{}
}

// Next returns the next generation and increments the counter.
func (g *Generations) Next() int64 {
	return g.seq.Add(1)
}

// Current returns the last issued generation without incrementing.
func (g *Generations) Current() int64 {
	return g.seq.Load()
}
