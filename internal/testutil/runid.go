package testutil

import (
	"fmt"
	"sync"
)

// DefaultRunID is returned by a FixedRunIDGenerator created with an empty id.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run id every time.
//
// Scenarios run against a fresh journal, so a constant id keeps golden
// output byte-identical between runs.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a fixed generator. The id is typically set
// in scenario YAML:
//
//	run_id: "test-run-00000000-0000-0000-0000-000000000001"
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequenceRunIDGenerator numbers runs "<prefix>-1", "<prefix>-2", ...
// for tests that record several runs into one journal.
type SequenceRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceRunIDGenerator creates a generator with the given prefix.
func NewSequenceRunIDGenerator(prefix string) *SequenceRunIDGenerator {
	return &SequenceRunIDGenerator{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (g *SequenceRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
