package store

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for journal rows.
// Implemented by Clock here and by testutil.DeterministicClock in tests.
type Sequencer interface {
	Next() int64
}

// Clock is the journal's monotonic logical clock.
//
// Every dispatch, firing and completion row is stamped with a seq from the
// clock. Ordering in the journal always uses seq, never wall time, so a
// replayed token produces rows in the same order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, typically the
// journal's LastSeq so appended rows sort after existing ones.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
