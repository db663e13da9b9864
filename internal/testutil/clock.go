// Package testutil holds deterministic stand-ins for the journal's clock
// and token source, plus small helpers shared by package tests.
package testutil

import "sync/atomic"

// DeterministicClock is a rewindable store.Sequencer. Running the same
// scenario on a fresh clock yields the same seq values, so golden traces
// stay byte-identical.
type DeterministicClock struct {
	origin int64
	seq    atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockFrom(0)
}

// NewDeterministicClockFrom returns a clock whose first Next is origin+1.
func NewDeterministicClockFrom(origin int64) *DeterministicClock {
	c := &DeterministicClock{origin: origin}
	c.seq.Store(origin)
	return c
}

func (c *DeterministicClock) Next() int64 { return c.seq.Add(1) }

func (c *DeterministicClock) Current() int64 { return c.seq.Load() }

// Reset rewinds the clock to its origin.
func (c *DeterministicClock) Reset() { c.seq.Store(c.origin) }
