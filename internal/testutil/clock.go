package testutil

import "sync"

// DeterministicClock stamps artifacts with predictable sequence numbers.
//
// It satisfies transform.Sequencer. Unlike transform.Clock it can be reset,
// so one scenario can be replayed against a fresh journal and produce the
// same seq values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	seq   int64
}

// NewDeterministicClock creates a clock whose first Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt creates a clock whose first Next() returns
// start+1. Use it to continue numbering after artifacts already in a journal.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{start: start, seq: start}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last sequence number handed out.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to where it started.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = c.start
}
