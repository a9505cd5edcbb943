package transform

import "sync/atomic"

// Sequencer stamps artifacts in processing order.
// Implemented by *Clock and testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock stamping artifacts in processing order.
//
// The journal orders artifacts by these values, never by wall time, so a
// run reads back in exactly the order its directives propagated.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
