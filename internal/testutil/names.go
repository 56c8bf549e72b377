package testutil

import (
	"fmt"
	"sync"
)

// FixedNameGenerator returns the same database name every time.
//
// Runs that share a fixed name also share a shared-cache in-memory database
// while any connection to it stays open.
type FixedNameGenerator struct {
	name string
}

// NewFixedNameGenerator returns a generator for name.
// An empty name becomes "test-db-default".
func NewFixedNameGenerator(name string) *FixedNameGenerator {
	if name == "" {
		name = "test-db-default"
	}
	return &FixedNameGenerator{name: name}
}

// Generate returns the fixed name.
func (g *FixedNameGenerator) Generate() string {
	return g.name
}

// SequenceNameGenerator returns prefix-1, prefix-2, ... in order.
//
// Thread-safety: all methods are safe for concurrent use.
type SequenceNameGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequenceNameGenerator returns a generator starting at prefix-1.
func NewSequenceNameGenerator(prefix string) *SequenceNameGenerator {
	return &SequenceNameGenerator{prefix: prefix}
}

// Generate returns the next name in the sequence.
func (g *SequenceNameGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence; the next name is prefix-1 again.
func (g *SequenceNameGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
